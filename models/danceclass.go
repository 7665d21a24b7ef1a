package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DanceClass is a catalogue entry (ballet, salsa, ...). Scheduling and
// attendance live in their own subsystem; billing only references the
// monthly fee when generating invoices.
type DanceClass struct {
	Id              string `json:"id" gorm:"primaryKey"`
	Name            string `json:"name" gorm:"not null"`
	Description     string `json:"description"`
	InstructorName  string `json:"instructor_name"`
	MonthlyFeeCents int64  `json:"monthly_fee_cents"`
	WeekdaySchedule string `json:"weekday_schedule"` // e.g. "tue/thu 19:00"
	Active          bool   `json:"-"`
}

func (class *DanceClass) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	class.Id = uuid.NewString()
	return
}
