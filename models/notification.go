package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Billing-related notification categories, subject to the one-live-entry-per-
// invoice dedup rule. Other categories (announcements, class changes, ...)
// belong to other subsystems and are never touched by billing.
const (
	NotificationCategoryReminder         = "reminder"
	NotificationCategoryOverdue          = "overdue"
	NotificationCategoryBilling          = "billing"
	NotificationCategoryPaymentConfirmed = "payment_confirmed"
	NotificationCategoryPendingInvoice   = "pending_invoice"
)

// PaymentNotification is one entry in a student's notification list. Stored
// as rows keyed by id rather than an array field so concurrent upserts for
// different invoices never overwrite each other.
type PaymentNotification struct {
	Id        string `json:"id" gorm:"primaryKey"`
	StudentID string `json:"student_id" gorm:"not null;index"`
	Category  string `json:"category" gorm:"type:varchar(30);not null"`
	Title     string `json:"title" gorm:"not null"`
	Body      string `json:"body"`

	InvoiceID   *string    `json:"invoice_id" gorm:"index"`
	AmountCents *int64     `json:"amount_cents"`
	DueDate     *time.Time `json:"due_date"`

	CreatedBy   string     `json:"created_by" gorm:"type:varchar(30)"`
	Read        bool       `json:"read"`
	DismissedAt *time.Time `json:"dismissed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (n *PaymentNotification) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if n.Id == "" {
		n.Id = uuid.NewString()
	}
	return
}
