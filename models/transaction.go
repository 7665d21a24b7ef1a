package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction is an immutable accounting record, created exactly once per
// confirmed payment. Never updated after creation.
type Transaction struct {
	Id          string    `json:"id" gorm:"primaryKey"`
	Category    string    `json:"category" gorm:"type:varchar(30);not null"` // "tuition"
	InvoiceID   string    `json:"invoice_id" gorm:"uniqueIndex;not null"`
	StudentID   string    `json:"student_id" gorm:"index;not null"`
	AmountCents int64     `json:"amount_cents" gorm:"not null"`
	Date        time.Time `json:"date"`
	Method      string    `json:"method" gorm:"type:varchar(20)"`
	CreatedBy   string    `json:"created_by" gorm:"type:varchar(20)"` // "system"
	CreatedAt   time.Time `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	// Fresh UUID per record; never derived from the invoice.
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	return
}
