package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Body content types an endpoint can declare.
const (
	BodyContentJSON     = "json"
	BodyContentFormData = "form-data"
)

// Declared query or body parameter on an endpoint.
type ParameterSpec struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	EnumValues []string `json:"enumValues,omitempty"`
}

type ParameterSpecs []ParameterSpec

func (p ParameterSpecs) Value() (driver.Value, error) {
	if p == nil {
		p = ParameterSpecs{}
	}
	return json.Marshal(p)
}

func (p *ParameterSpecs) Scan(value interface{}) error {
	if value == nil {
		*p = ParameterSpecs{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported column type %T for parameter specs", value)
	}
}

// Find returns the declared parameter with the given name, or nil.
func (p ParameterSpecs) Find(name string) *ParameterSpec {
	for i := range p {
		if p[i].Name == name {
			return &p[i]
		}
	}
	return nil
}

// Static header attached to every outbound call for an endpoint.
type HeaderSpec struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type HeaderSpecs []HeaderSpec

func (h HeaderSpecs) Value() (driver.Value, error) {
	if h == nil {
		h = HeaderSpecs{}
	}
	return json.Marshal(h)
}

func (h *HeaderSpecs) Scan(value interface{}) error {
	if value == nil {
		*h = HeaderSpecs{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported column type %T for header specs", value)
	}
}

// One operation (method + path template) exposed by an API. Counters are
// only ever mutated by the stats aggregator.
type Endpoint struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	APIID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"api_id"`
	Path            string         `gorm:"not null" json:"path"`
	Method          string         `gorm:"not null" json:"method"`
	Description     string         `json:"description"`
	QueryParameters ParameterSpecs `gorm:"type:jsonb" json:"query_parameters"`
	BodyParameters  ParameterSpecs `gorm:"type:jsonb" json:"body_parameters"`
	Headers         HeaderSpecs    `gorm:"type:jsonb" json:"headers"`
	BodyContentType string         `gorm:"default:'json'" json:"body_content_type"`
	AuthRequired    bool           `gorm:"default:false" json:"auth_required"`
	TotalCalls      int64          `gorm:"default:0" json:"total_calls"`
	ErrorCount      int64          `gorm:"default:0" json:"error_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (e *Endpoint) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (Endpoint) TableName() string {
	return "endpoints"
}
