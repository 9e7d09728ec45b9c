package models

import (
	"time"

	"github.com/google/uuid"
)

// Immutable record of one test call. Append-only; the ground truth for
// both the stats aggregator and the analytics reader.
type EndpointLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EndpointID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"endpoint_id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Success      bool       `json:"success"`
	Latency      int64      `json:"latency_ms"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (EndpointLog) TableName() string {
	return "endpoint_logs"
}
