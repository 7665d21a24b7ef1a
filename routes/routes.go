package routes

import (
	"github.com/gofiber/fiber/v2"

	"danceschool-backend/controllers"
	"danceschool-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App, invoices *controllers.InvoiceController, payments *controllers.PaymentController, webhooks *controllers.WebhookController) {
	// Processor-facing webhook; unauthenticated by contract.
	webhooks.RegisterRoutes(app)

	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard for mutating requests (replays the stored response
	// on client retries; critical for payment creation)
	protected.Use(middlewares.Idempotency())

	// Students
	protected.Post("/student", controllers.CreateStudent)
	protected.Get("/students", controllers.GetStudents)
	protected.Get("/student/:id", controllers.GetStudent)
	protected.Put("/student/:id", controllers.UpdateStudent)

	// Dance classes
	protected.Post("/class", controllers.CreateClasses) // batch create
	protected.Get("/classes", controllers.GetClasses)
	protected.Put("/classes/:id", controllers.UpdateClass)

	// Invoices and payments
	invoices.RegisterRoutes(protected)
	payments.RegisterRoutes(protected)
}
