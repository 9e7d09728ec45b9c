package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Consumer credential issued per (API, user) pair. The bearer token a
// non-owner caller presents when testing a key-gated API.
type APIKey struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	APIID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_api_user;not null" json:"api_id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_api_user;not null" json:"user_id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"-"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *APIKey) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (APIKey) TableName() string {
	return "api_keys"
}
