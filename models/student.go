package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Aggregate payment status, always derived from the student's non-cancelled
// invoices (billing.AggregateStatus). Never hand-set outside recomputation.
const (
	PaymentStatusUpToDate  = "up_to_date"
	PaymentStatusPending   = "pending"
	PaymentStatusOverdue   = "overdue"
	PaymentStatusNoCharges = "no_charges"
)

type Student struct {
	Id            string `json:"id" gorm:"primaryKey"`
	FirstName     string `json:"first_name" gorm:"not null"`
	LastName      string `json:"last_name" gorm:"not null"`
	Email         string `json:"email" gorm:"unique;not null"`
	PhoneNumber   string `json:"phone_number"`
	PaymentStatus string `json:"payment_status" gorm:"type:varchar(20);default:'no_charges'"`
	Active        bool   `json:"active"`

	Notifications []PaymentNotification `json:"-" gorm:"foreignKey:StudentID;references:Id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (student *Student) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if student.Id == "" {
		student.Id = uuid.NewString()
	}
	return
}
