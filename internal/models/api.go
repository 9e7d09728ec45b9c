package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider auth types accepted on an API.
const (
	ProviderAuthAPIKey = "apiKey"
	ProviderAuthOAuth2 = "oauth2"
	ProviderAuthNone   = "none"
)

// Provider auth locations.
const (
	AuthLocationHeader = "header"
	AuthLocationQuery  = "query"
)

// A third-party API registered by an owner. ProviderAuthKey only ever
// holds the encrypted token produced by the credential codec.
type API struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID              uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	Name                 string    `gorm:"not null" json:"name"`
	Description          string    `json:"description"`
	Category             string    `gorm:"index" json:"category"`
	BaseURL              string    `gorm:"not null" json:"base_url"`
	Visibility           string    `gorm:"default:'public'" json:"visibility"`
	RequiresAPIKey       bool      `gorm:"default:false" json:"requires_api_key"`
	Logo                 string    `json:"logo,omitempty"`
	TotalViews           int64     `gorm:"default:0" json:"total_views"`
	ProviderAuthType     string    `json:"provider_auth_type,omitempty"`
	ProviderAuthLocation string    `json:"provider_auth_location,omitempty"`
	ProviderAuthField    string    `json:"provider_auth_field,omitempty"`
	ProviderAuthKey      string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (a *API) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (API) TableName() string {
	return "apis"
}

func (a *API) IsPublic() bool {
	return a.Visibility == "public"
}
