package controllers

import (
	"strings"

	"danceschool-backend/billing"
	"danceschool-backend/gateway"
	"danceschool-backend/middlewares"
	"danceschool-backend/models"

	"github.com/gofiber/fiber/v2"
)

// PaymentController exposes payment creation and the status poll endpoint
// clients hit while showing a QR code. Clients are expected to stop polling
// after 5 minutes; the response carries the PIX expiry so they can stop
// earlier.
type PaymentController struct {
	Gateway  *gateway.Client
	Invoices billing.InvoiceStore
	Recon    *billing.Service
	Sweeper  *billing.Sweeper
}

func NewPaymentController(gw *gateway.Client, invoices billing.InvoiceStore, recon *billing.Service, sweeper *billing.Sweeper) *PaymentController {
	return &PaymentController{Gateway: gw, Invoices: invoices, Recon: recon, Sweeper: sweeper}
}

func (h *PaymentController) RegisterRoutes(r fiber.Router) {
	r.Post("/invoices/:id/pix", h.CreatePixPayment)
	r.Get("/payments/status", h.CheckStatus)
	r.Post("/admin/reconcile", h.TriggerReconcile)
}

type createPixPaymentInput struct {
	PayerEmail string `json:"payer_email" validate:"required,email"`
	PayerName  string `json:"payer_name"`
}

// CreatePixPayment creates a PIX charge for an open invoice and persists the
// processor payload on it. Guarded by the Idempotency middleware so client
// retries replay the stored response instead of re-charging.
func (h *PaymentController) CreatePixPayment(c *fiber.Ctx) error {
	var input createPixPaymentInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	invoice, err := h.Invoices.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return billing.E(billing.CodeInvalidArgument, "invoice is already paid")
	}
	if !invoice.Open() {
		return billing.E(billing.CodeInvalidArgument, "invoice cannot receive payments")
	}

	result, err := h.Gateway.CreatePayment(c.Context(), gateway.CreatePaymentInput{
		InvoiceID:   invoice.Id,
		AmountCents: invoice.AmountCents,
		Description: invoice.Description,
		PayerEmail:  input.PayerEmail,
		PayerName:   input.PayerName,
	})
	if err != nil {
		return err
	}

	invoice.PaymentID = &result.PaymentID
	invoice.PaymentGatewayStatus = &result.Status
	invoice.PixCode = &result.PixCode
	invoice.PixQRImage = &result.PixQRImage
	invoice.PixTicketURL = &result.TicketURL
	expiresAt := result.ExpiresAt
	invoice.PixExpiresAt = &expiresAt
	if err := h.Invoices.SavePaymentDetails(c.Context(), invoice); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"invoice_id":     invoice.Id,
		"payment_id":     result.PaymentID,
		"status":         result.Status,
		"charged_cents":  result.ChargeCents,
		"pix_code":       result.PixCode,
		"pix_qr_image":   result.PixQRImage,
		"pix_ticket_url": result.TicketURL,
		"expires_at":     expiresAt,
	})
}

// CheckStatus is the synchronous poll path. It accepts either a payment id
// or an invoice id, re-queries the processor and runs the same reconcile
// step the webhook and the sweeper use; the idempotent short-circuit keeps
// repeated polls cheap.
func (h *PaymentController) CheckStatus(c *fiber.Ctx) error {
	paymentID := strings.TrimSpace(c.Query("payment_id"))
	invoiceID := strings.TrimSpace(c.Query("invoice_id"))
	if paymentID == "" && invoiceID == "" {
		return billing.E(billing.CodeInvalidArgument, "payment_id or invoice_id is required")
	}

	if paymentID == "" {
		invoice, err := h.Invoices.Get(c.Context(), invoiceID)
		if err != nil {
			return err
		}
		if invoice.PaymentID == nil {
			return billing.E(billing.CodeNotFound, "invoice has no payment attached")
		}
		paymentID = *invoice.PaymentID
	}

	status, err := h.Gateway.QueryPayment(c.Context(), paymentID)
	if err != nil {
		return err
	}

	// The processor's external_reference is the only binding between a
	// payment and an invoice. A caller-supplied invoice_id never overrides
	// it: otherwise one approved payment could mark any open invoice paid.
	if invoiceID != "" && status.ExternalReference != "" && status.ExternalReference != invoiceID {
		return billing.E(billing.CodeInvalidArgument, "payment does not belong to this invoice")
	}
	if invoiceID == "" {
		invoiceID = status.ExternalReference
	}
	if invoiceID == "" {
		return billing.E(billing.CodeNotFound, "payment has no invoice reference")
	}

	res, err := h.Recon.Reconcile(c.Context(), invoiceID, paymentID, status.Status, status.StatusDetail)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":        status.Status,
		"status_detail": status.StatusDetail,
		"is_paid":       res.InvoicePaid,
	})
}

// TriggerReconcile runs one sweep on demand (same pass the 15-minute timer
// runs), for admins chasing a straggler.
func (h *PaymentController) TriggerReconcile(c *fiber.Ctx) error {
	paid, err := h.Sweeper.SweepOnce(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"newly_paid": paid})
}
