package models

import (
	"time"

	"github.com/google/uuid"
)

// Rolling aggregate over an API's endpoint logs. At most one row per
// API, created lazily on the first recorded call and updated in place
// with an incremental mean - never recomputed from the full history.
type APILog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	APIID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"api_id"`
	TotalCalls     int64     `gorm:"default:0" json:"total_calls"`
	TotalErrors    int64     `gorm:"default:0" json:"total_errors"`
	AverageLatency float64   `gorm:"default:0" json:"average_latency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (APILog) TableName() string {
	return "api_logs"
}
