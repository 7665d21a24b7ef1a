package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcomes recorded per processor push delivery.
const (
	WebhookOutcomeIgnored     = "ignored"
	WebhookOutcomeReconciled  = "reconciled"
	WebhookOutcomeAlreadyPaid = "already_paid"
	WebhookOutcomeNotFound    = "not_found"
	WebhookOutcomeError       = "error"
)

// WebhookEvent is a best-effort audit row for every processor push the
// webhook endpoint receives, including ignored and malformed-adjacent ones.
type WebhookEvent struct {
	Id         string         `json:"id" gorm:"primaryKey"`
	Provider   string         `json:"provider" gorm:"type:varchar(30)"`
	EventType  string         `json:"event_type" gorm:"type:varchar(50)"`
	PaymentID  string         `json:"payment_id" gorm:"index"`
	InvoiceID  *string        `json:"invoice_id"`
	Outcome    string         `json:"outcome" gorm:"type:varchar(20)"`
	Payload    datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt time.Time      `json:"received_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	return
}
