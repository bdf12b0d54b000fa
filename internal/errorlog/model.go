package errorlog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrorLog is one recorded transfer failure.
type ErrorLog struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	Method    string         `gorm:"not null;index" json:"method"`
	Message   string         `gorm:"not null" json:"message"`
	Trace     string         `gorm:"index" json:"trace"`
	Context   datatypes.JSON `gorm:"type:json" json:"context,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (e *ErrorLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
