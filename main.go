package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"danceschool-backend/billing"
	"danceschool-backend/controllers"
	"danceschool-backend/database"
	"danceschool-backend/gateway"
	"danceschool-backend/middlewares"
	"danceschool-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	// ---- Database
	database.Connect()
	database.AutoMigrate()

	// ---- Payment processor client
	gatewayClient := gateway.NewClient(
		os.Getenv("PAYMENT_API_BASE_URL"),
		os.Getenv("PAYMENT_API_TOKEN"),
		int64(envInt("PAYMENT_MIN_CENTS", 100)),
	)

	// ---- Stores + reconciliation engine
	invoiceStore := &database.InvoiceStore{DB: database.DB}
	recon := billing.NewService(
		invoiceStore,
		&database.TransactionStore{DB: database.DB},
		&database.StudentStore{DB: database.DB},
		&database.NotificationStore{DB: database.DB},
		&database.ActivityStore{DB: database.DB},
		log.Default(),
	)

	// ---- Scheduled reconciler (the third confirmation channel)
	sweeper := billing.NewSweeper(
		invoiceStore,
		gatewayClient,
		recon,
		time.Duration(envInt("RECONCILE_INTERVAL_MINUTES", 15))*time.Minute,
		time.Duration(envInt("RECONCILE_ITEM_TIMEOUT_SECONDS", 10))*time.Second,
		log.Default(),
	)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go func() {
		if err := sweeper.Run(sweepCtx); err != nil && err != context.Canceled {
			log.Printf("sweeper stopped: %v", err)
		}
	}()

	// ---- Limits (configurable via env)
	// Fiber default BodyLimit is 4 * 1024 * 1024 bytes if unset (per docs).
	// We allow overriding with BODY_LIMIT_BYTES or BODY_LIMIT_MB.
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	rlMax := envInt("RATE_LIMIT_MAX", 60)                                            // default 60 reqs
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second // default 60s window
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		// Default KeyGenerator = client IP; default 429 handler is fine.
		// See: https://docs.gofiber.io/api/middleware/limiter
		// Processor pushes are exempt: a 429 would drop the delivery until
		// the next sweep (processors do not retry 4xx).
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == controllers.PaymentWebhookPath
		},
	}))

	// ---- Controllers + routes
	invoiceController := controllers.NewInvoiceController(recon)
	paymentController := controllers.NewPaymentController(gatewayClient, invoiceStore, recon, sweeper)
	webhookController := controllers.NewWebhookController(gatewayClient, recon, &database.WebhookEventStore{DB: database.DB}, log.Default())
	routes.Register(app, invoiceController, paymentController, webhookController)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := app.Listen(":" + port); err != nil {
		panic(err)
	}
	fmt.Println("API server started on port", port)
}
