package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
)

var allowedProviderAuthTypes = []string{
	models.ProviderAuthAPIKey,
	models.ProviderAuthOAuth2,
	models.ProviderAuthNone,
}

// Fields accepted when registering an API.
type APIInput struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Category             string `json:"category"`
	BaseURL              string `json:"baseUrl"`
	Visibility           string `json:"visibility"`
	Logo                 string `json:"logo"`
	RequiresAPIKey       bool   `json:"requiresApiKey"`
	ProviderAuthType     string `json:"providerAuthType"`
	ProviderAuthLocation string `json:"providerAuthLocation"`
	ProviderAuthField    string `json:"providerAuthField"`
	ProviderAuthKey      string `json:"providerAuthKey"`
}

// Explicit patch: every mutable field, nil means untouched.
type APIPatch struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Category             *string `json:"category"`
	BaseURL              *string `json:"baseUrl"`
	Visibility           *string `json:"visibility"`
	Logo                 *string `json:"logo"`
	RequiresAPIKey       *bool   `json:"requiresApiKey"`
	ProviderAuthType     *string `json:"providerAuthType"`
	ProviderAuthLocation *string `json:"providerAuthLocation"`
	ProviderAuthField    *string `json:"providerAuthField"`
	ProviderAuthKey      *string `json:"providerAuthKey"`
}

type APIService struct {
	apis  *repository.APIRepository
	keys  *APIKeyService
	codec *crypto.Codec
}

func NewAPIService(apis *repository.APIRepository, keys *APIKeyService, codec *crypto.Codec) *APIService {
	return &APIService{apis: apis, keys: keys, codec: codec}
}

// Registers an API; the provider key, if any, is encrypted before it
// ever reaches the store. Key-gated APIs get an owner key up front.
func (s *APIService) Create(ctx context.Context, ownerID uuid.UUID, input APIInput) (*models.API, error) {
	if input.Name == "" || input.BaseURL == "" || input.Category == "" {
		return nil, invalid("name, baseUrl and category are required")
	}

	if input.ProviderAuthType != "" && !contains(allowedProviderAuthTypes, input.ProviderAuthType) {
		return nil, invalid(fmt.Sprintf("invalid providerAuthType, allowed values: %s",
			strings.Join(allowedProviderAuthTypes, ", ")))
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = "public"
	}

	api := &models.API{
		OwnerID:              ownerID,
		Name:                 input.Name,
		Description:          input.Description,
		Category:             input.Category,
		BaseURL:              input.BaseURL,
		Visibility:           visibility,
		RequiresAPIKey:       input.RequiresAPIKey,
		Logo:                 input.Logo,
		ProviderAuthType:     input.ProviderAuthType,
		ProviderAuthLocation: input.ProviderAuthLocation,
		ProviderAuthField:    input.ProviderAuthField,
	}

	if input.ProviderAuthKey != "" {
		encrypted, err := s.codec.Encrypt(input.ProviderAuthKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt provider key: %w", err)
		}
		api.ProviderAuthKey = encrypted
	}

	if err := s.apis.Create(ctx, api); err != nil {
		return nil, err
	}

	if api.RequiresAPIKey {
		if _, err := s.keys.Generate(ctx, api.ID, ownerID); err != nil {
			return nil, fmt.Errorf("failed to issue owner key: %w", err)
		}
	}

	return api, nil
}

func (s *APIService) ListPublic(ctx context.Context, filter repository.APIFilter) ([]models.API, int64, error) {
	return s.apis.FindPublic(ctx, normalizeFilter(filter, 12))
}

func (s *APIService) ListMine(ctx context.Context, ownerID uuid.UUID, filter repository.APIFilter) ([]models.API, int64, error) {
	return s.apis.FindByOwner(ctx, ownerID, normalizeFilter(filter, 6))
}

// Get returns the API and bumps its view counter. Private APIs are
// visible to their owner only and read as absent to everyone else.
func (s *APIService) Get(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*models.API, error) {
	api, err := s.apis.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, ErrNotFound
	}
	if !api.IsPublic() && (callerID == nil || *callerID != api.OwnerID) {
		return nil, ErrNotFound
	}

	if err := s.apis.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	api.TotalViews++

	return api, nil
}

// Update applies a typed patch; only the owner may mutate.
func (s *APIService) Update(ctx context.Context, id, callerID uuid.UUID, patch APIPatch) (*models.API, error) {
	api, err := s.apis.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, ErrNotFound
	}
	if api.OwnerID != callerID {
		return nil, ErrForbidden
	}

	if patch.ProviderAuthType != nil && *patch.ProviderAuthType != "" &&
		!contains(allowedProviderAuthTypes, *patch.ProviderAuthType) {
		return nil, invalid(fmt.Sprintf("invalid providerAuthType, allowed values: %s",
			strings.Join(allowedProviderAuthTypes, ", ")))
	}

	updates := make(map[string]interface{})
	setField(updates, "name", patch.Name)
	setField(updates, "description", patch.Description)
	setField(updates, "category", patch.Category)
	setField(updates, "base_url", patch.BaseURL)
	setField(updates, "visibility", patch.Visibility)
	setField(updates, "logo", patch.Logo)
	setField(updates, "provider_auth_type", patch.ProviderAuthType)
	setField(updates, "provider_auth_location", patch.ProviderAuthLocation)
	setField(updates, "provider_auth_field", patch.ProviderAuthField)
	if patch.RequiresAPIKey != nil {
		updates["requires_api_key"] = *patch.RequiresAPIKey
	}

	if patch.ProviderAuthKey != nil && *patch.ProviderAuthKey != "" {
		encrypted, err := s.codec.Encrypt(*patch.ProviderAuthKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt provider key: %w", err)
		}
		updates["provider_auth_key"] = encrypted
	}

	if len(updates) == 0 {
		return nil, invalid("no fields provided to update")
	}

	if err := s.apis.Update(ctx, id, updates); err != nil {
		return nil, err
	}

	// Turning key gating on issues the owner key if it is missing
	if patch.RequiresAPIKey != nil && *patch.RequiresAPIKey {
		existing, err := s.keys.Get(ctx, id, callerID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if _, err := s.keys.Generate(ctx, id, callerID); err != nil {
				return nil, err
			}
		}
	}

	return s.apis.FindByID(ctx, id)
}

// Delete removes the API and all dependent rows transactionally.
func (s *APIService) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	api, err := s.apis.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if api == nil {
		return ErrNotFound
	}
	if api.OwnerID != callerID {
		return ErrForbidden
	}

	return s.apis.DeleteCascade(ctx, id)
}

func normalizeFilter(filter repository.APIFilter, defaultLimit int) repository.APIFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = defaultLimit
	}
	return filter
}

func setField(updates map[string]interface{}, column string, value *string) {
	if value != nil {
		updates[column] = *value
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
