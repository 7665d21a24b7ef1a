package controllers

import (
	"log"
	"strings"
	"time"

	"danceschool-backend/billing"
	"danceschool-backend/database"
	"danceschool-backend/middlewares"
	"danceschool-backend/models"

	"github.com/gofiber/fiber/v2"
)

// InvoiceController owns the invoice CRUD surface. Billing generation proper
// (which students get charged what, and when pending flips to overdue) lives
// with the front-desk tooling; the controller only records obligations and
// cancellations, and delegates aggregate recomputation to billing.
type InvoiceController struct {
	Recon *billing.Service
}

func NewInvoiceController(recon *billing.Service) *InvoiceController {
	return &InvoiceController{Recon: recon}
}

func (h *InvoiceController) RegisterRoutes(r fiber.Router) {
	r.Post("/invoice", h.CreateInvoice)
	r.Get("/invoices", h.GetInvoices)
	r.Get("/invoice/:id", h.GetInvoice)
	r.Put("/invoices/:id/cancel", h.CancelInvoice)
}

type createInvoiceInput struct {
	StudentID      string `json:"student_id" validate:"required,uuid4"`
	AmountCents    int64  `json:"amount_cents" validate:"required,gt=0"`
	Description    string `json:"description" validate:"required"`
	ReferenceMonth string `json:"reference_month" validate:"required,len=7"` // "YYYY-MM"
	DueDate        string `json:"due_date" validate:"required"`              // "2006-01-02"
}

func (h *InvoiceController) CreateInvoice(c *fiber.Ctx) error {
	var input createInvoiceInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	dueDate, err := time.Parse("2006-01-02", strings.TrimSpace(input.DueDate))
	if err != nil {
		return billing.E(billing.CodeInvalidArgument, "due_date must be YYYY-MM-DD")
	}

	var student models.Student
	if err := database.DB.Where("id = ?", input.StudentID).First(&student).Error; err != nil {
		return billing.E(billing.CodeNotFound, "student not found")
	}

	invoice := models.Invoice{
		StudentID:      input.StudentID,
		AmountCents:    input.AmountCents,
		Description:    strings.TrimSpace(input.Description),
		ReferenceMonth: strings.TrimSpace(input.ReferenceMonth),
		DueDate:        dueDate,
		Status:         models.InvoiceStatusPending,
	}
	if err := database.DB.Create(&invoice).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create invoice")
	}

	if err := h.Recon.RecomputeStudentStatus(c.Context(), invoice.StudentID); err != nil {
		// Invoice exists either way; the next recompute corrects the aggregate.
		log.Printf("invoice %s: aggregate recompute failed: %v", invoice.Id, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func (h *InvoiceController) GetInvoices(c *fiber.Ctx) error {
	db := database.DB.Model(&models.Invoice{})
	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		db = db.Where("student_id = ?", studentID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		db = db.Where("status = ?", status)
	}

	var invoices []models.Invoice
	if err := db.Order("due_date DESC").Find(&invoices).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not list invoices")
	}
	return c.JSON(invoices)
}

func (h *InvoiceController) GetInvoice(c *fiber.Ctx) error {
	var invoice models.Invoice
	if err := database.DB.Where("id = ?", c.Params("id")).First(&invoice).Error; err != nil {
		return billing.E(billing.CodeNotFound, "invoice not found")
	}
	return c.JSON(invoice)
}

// CancelInvoice marks an open invoice cancelled. Paid invoices are final;
// cancelled ones are never touched again by reconciliation.
func (h *InvoiceController) CancelInvoice(c *fiber.Ctx) error {
	var invoice models.Invoice
	if err := database.DB.Where("id = ?", c.Params("id")).First(&invoice).Error; err != nil {
		return billing.E(billing.CodeNotFound, "invoice not found")
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return billing.E(billing.CodeInvalidArgument, "a paid invoice cannot be cancelled")
	}
	if invoice.Status != models.InvoiceStatusCancelled {
		res := database.DB.Model(&models.Invoice{}).
			Where("id = ? AND status IN ?", invoice.Id, []string{models.InvoiceStatusPending, models.InvoiceStatusOverdue}).
			Updates(map[string]any{
				"status":     models.InvoiceStatusCancelled,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not cancel invoice")
		}
		if res.RowsAffected == 0 {
			// Lost a race against a concurrent paid transition.
			return billing.E(billing.CodeInvalidArgument, "a paid invoice cannot be cancelled")
		}
	}

	if err := h.Recon.RecomputeStudentStatus(c.Context(), invoice.StudentID); err != nil {
		return err
	}

	invoice.Status = models.InvoiceStatusCancelled
	return c.JSON(invoice)
}
