package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice lifecycle. Terminal states are paid and cancelled; the paid
// transition happens exclusively through billing.Service.Reconcile.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice is a billing obligation against a student. Amounts are integer
// minor units (cents).
type Invoice struct {
	Id        string  `json:"id" gorm:"primaryKey"`
	StudentID string  `json:"student_id" gorm:"not null;index"`
	Student   Student `json:"-" gorm:"foreignKey:StudentID;references:Id"`

	AmountCents    int64     `json:"amount_cents" gorm:"not null"`
	Description    string    `json:"description"`
	ReferenceMonth string    `json:"reference_month" gorm:"type:varchar(7)"` // "YYYY-MM"
	DueDate        time.Time `json:"due_date"`
	Status         string    `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	// Processor-side state, populated when a PIX payment is created.
	PaymentID            *string    `json:"payment_id" gorm:"index"`
	PaymentGatewayStatus *string    `json:"payment_gateway_status"`
	PixCode              *string    `json:"pix_code"`
	PixQRImage           *string    `json:"pix_qr_image"`
	PixTicketURL         *string    `json:"pix_ticket_url"`
	PixExpiresAt         *time.Time `json:"pix_expires_at"`

	PaidAt     *time.Time `json:"paid_at"`
	PaidMethod *string    `json:"paid_method"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if invoice.Id == "" {
		invoice.Id = uuid.NewString()
	}
	return
}

// Open reports whether the invoice can still receive a payment.
func (invoice *Invoice) Open() bool {
	return invoice.Status == InvoiceStatusPending || invoice.Status == InvoiceStatusOverdue
}
