package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is a human-readable audit entry ("payment received", ...).
// Appended best-effort; a failed append never affects the operation that
// produced it.
type ActivityLog struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	StudentID string    `json:"student_id" gorm:"index"`
	Kind      string    `json:"kind" gorm:"type:varchar(30)"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	return
}
