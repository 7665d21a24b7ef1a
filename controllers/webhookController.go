package controllers

import (
	"context"
	"log"
	"time"

	"danceschool-backend/billing"
	"danceschool-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

// WebhookEventRecorder persists a best-effort audit row per processor push.
type WebhookEventRecorder interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
}

// WebhookController receives processor push notifications. Response contract:
// 200 for anything handled or deliberately ignored (so the processor does not
// retry-storm non-actionable events), 400 for bodies we could not parse
// (processors do not retry 4xx), 500 only for internal failures we want
// redelivered.
type WebhookController struct {
	Gateway billing.PaymentQuerier
	Recon   *billing.Service
	Events  WebhookEventRecorder // optional
	Logger  *log.Logger
}

func NewWebhookController(gw billing.PaymentQuerier, recon *billing.Service, events WebhookEventRecorder, logger *log.Logger) *WebhookController {
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookController{Gateway: gw, Recon: recon, Events: events, Logger: logger}
}

// PaymentWebhookPath is where the processor pushes payment events. Exempt
// from the global rate limiter: a throttled delivery would be dropped until
// the next sweep, since processors do not retry 4xx.
const PaymentWebhookPath = "/webhooks/payments"

func (h *WebhookController) RegisterRoutes(r fiber.Router) {
	r.Post(PaymentWebhookPath, h.HandlePaymentEvent)
}

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *WebhookController) HandlePaymentEvent(c *fiber.Ctx) error {
	var body webhookBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "malformed webhook body"})
	}

	event := &models.WebhookEvent{
		Provider:   "pix",
		EventType:  body.Type,
		PaymentID:  body.Data.ID,
		Payload:    datatypes.JSON(append([]byte(nil), c.Body()...)),
		ReceivedAt: time.Now().UTC(),
	}

	if body.Type != "payment" || body.Data.ID == "" {
		h.record(c.Context(), event, models.WebhookOutcomeIgnored, nil)
		return c.JSON(fiber.Map{"message": "ignored"})
	}

	// Push payloads are unauthenticated; re-fetch the payment from the
	// processor instead of trusting pushed fields.
	status, err := h.Gateway.QueryPayment(c.Context(), body.Data.ID)
	if err != nil {
		if billing.IsCode(err, billing.CodeNotFound) {
			h.record(c.Context(), event, models.WebhookOutcomeNotFound, nil)
			return c.JSON(fiber.Map{"message": "unknown payment"})
		}
		h.Logger.Printf("webhook: payment %s: processor query failed: %v", body.Data.ID, err)
		h.record(c.Context(), event, models.WebhookOutcomeError, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "processor query failed"})
	}

	// The external reference was set to the invoice id at creation time.
	invoiceID := status.ExternalReference
	if invoiceID == "" {
		h.record(c.Context(), event, models.WebhookOutcomeIgnored, nil)
		return c.JSON(fiber.Map{"message": "no invoice reference"})
	}

	res, err := h.Recon.Reconcile(c.Context(), invoiceID, body.Data.ID, status.Status, status.StatusDetail)
	if err != nil {
		if billing.IsCode(err, billing.CodeNotFound) {
			h.Logger.Printf("webhook: payment %s references unknown invoice %s", body.Data.ID, invoiceID)
			h.record(c.Context(), event, models.WebhookOutcomeNotFound, &invoiceID)
			return c.JSON(fiber.Map{"message": "unknown invoice"})
		}
		h.Logger.Printf("webhook: invoice %s: reconcile failed: %v", invoiceID, err)
		h.record(c.Context(), event, models.WebhookOutcomeError, &invoiceID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "reconcile failed"})
	}

	outcome := models.WebhookOutcomeIgnored
	switch {
	case res.AlreadyPaid:
		outcome = models.WebhookOutcomeAlreadyPaid
	case res.InvoicePaid:
		outcome = models.WebhookOutcomeReconciled
	}
	h.record(c.Context(), event, outcome, &invoiceID)
	return c.JSON(fiber.Map{"message": "ok", "invoice_paid": res.InvoicePaid})
}

func (h *WebhookController) record(ctx context.Context, event *models.WebhookEvent, outcome string, invoiceID *string) {
	if h.Events == nil {
		return
	}
	event.Outcome = outcome
	event.InvoiceID = invoiceID
	if err := h.Events.Record(ctx, event); err != nil {
		h.Logger.Printf("webhook: audit record failed: %v", err)
	}
}
