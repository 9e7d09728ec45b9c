package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIService(t *testing.T) (*APIService, *storage.Postgres, *crypto.Codec) {
	t.Helper()

	db := newServiceDB(t)

	codec, err := crypto.NewCodec("api-service-test-secret")
	require.NoError(t, err)

	keys := NewAPIKeyService(repository.NewAPIKeyRepository(db), nil)

	return NewAPIService(repository.NewAPIRepository(db), keys, codec), db, codec
}

func TestCreateEncryptsProviderKey(t *testing.T) {
	service, db, codec := newAPIService(t)
	ctx := context.Background()

	api, err := service.Create(ctx, uuid.New(), APIInput{
		Name:                 "weather",
		Category:             "data",
		BaseURL:              "https://api.weather.example",
		ProviderAuthType:     models.ProviderAuthAPIKey,
		ProviderAuthLocation: models.AuthLocationHeader,
		ProviderAuthField:    "X-Key",
		ProviderAuthKey:      "sk-plain-secret",
	})
	require.NoError(t, err)

	var stored models.API
	require.NoError(t, db.DB.First(&stored, "id = ?", api.ID).Error)

	// Only the ciphertext ever hits the store
	assert.NotEqual(t, "sk-plain-secret", stored.ProviderAuthKey)

	decrypted, err := codec.Decrypt(stored.ProviderAuthKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-plain-secret", decrypted)
}

func TestCreateValidation(t *testing.T) {
	service, _, _ := newAPIService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, uuid.New(), APIInput{Name: "x"})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = service.Create(ctx, uuid.New(), APIInput{
		Name:             "x",
		Category:         "data",
		BaseURL:          "https://example.com",
		ProviderAuthType: "bogus",
	})
	assert.ErrorAs(t, err, &validationErr)
}

func TestCreateKeyGatedIssuesOwnerKey(t *testing.T) {
	service, db, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	api, err := service.Create(ctx, ownerID, APIInput{
		Name:           "gated",
		Category:       "data",
		BaseURL:        "https://example.com",
		RequiresAPIKey: true,
	})
	require.NoError(t, err)

	var key models.APIKey
	require.NoError(t, db.DB.First(&key, "api_id = ? AND user_id = ?", api.ID, ownerID).Error)
	assert.True(t, key.IsActive)
}

func TestGetBumpsViewsAndHidesPrivate(t *testing.T) {
	service, _, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	created, err := service.Create(ctx, ownerID, APIInput{
		Name:       "private",
		Category:   "data",
		BaseURL:    "https://example.com",
		Visibility: "private",
	})
	require.NoError(t, err)

	// Owner sees it, views bump
	api, err := service.Get(ctx, created.ID, &ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), api.TotalViews)

	// Everyone else reads it as absent
	strangerID := uuid.New()
	_, err = service.Get(ctx, created.ID, &strangerID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = service.Get(ctx, created.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOwnerOnly(t *testing.T) {
	service, _, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	created, err := service.Create(ctx, ownerID, APIInput{
		Name: "mutable", Category: "data", BaseURL: "https://example.com",
	})
	require.NoError(t, err)

	newName := "renamed"
	_, err = service.Update(ctx, created.ID, uuid.New(), APIPatch{Name: &newName})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := service.Update(ctx, created.ID, ownerID, APIPatch{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestUpdateEnablingKeyGatingIssuesOwnerKey(t *testing.T) {
	service, db, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	created, err := service.Create(ctx, ownerID, APIInput{
		Name: "open", Category: "data", BaseURL: "https://example.com",
	})
	require.NoError(t, err)

	gated := true
	_, err = service.Update(ctx, created.ID, ownerID, APIPatch{RequiresAPIKey: &gated})
	require.NoError(t, err)

	var key models.APIKey
	require.NoError(t, db.DB.First(&key, "api_id = ? AND user_id = ?", created.ID, ownerID).Error)
	assert.True(t, key.IsActive)
}

func TestDeleteCascades(t *testing.T) {
	service, db, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	created, err := service.Create(ctx, ownerID, APIInput{
		Name: "doomed", Category: "data", BaseURL: "https://example.com", RequiresAPIKey: true,
	})
	require.NoError(t, err)

	endpoint := &models.Endpoint{APIID: created.ID, Path: "/x", Method: "GET"}
	require.NoError(t, db.DB.Create(endpoint).Error)
	require.NoError(t, db.DB.Create(&models.EndpointLog{EndpointID: endpoint.ID, Success: true}).Error)

	require.NoError(t, service.Delete(ctx, created.ID, ownerID))

	for _, model := range []interface{}{&models.API{}, &models.Endpoint{}, &models.APIKey{}, &models.EndpointLog{}} {
		var count int64
		require.NoError(t, db.DB.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	service, _, _ := newAPIService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, uuid.New(), APIInput{
		Name: "kept", Category: "data", BaseURL: "https://example.com",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, service.Delete(ctx, created.ID, uuid.New()), ErrForbidden)
}

func TestListPublicFiltersVisibilityAndCategory(t *testing.T) {
	service, _, _ := newAPIService(t)
	ctx := context.Background()

	ownerID := uuid.New()
	_, err := service.Create(ctx, ownerID, APIInput{Name: "a", Category: "data", BaseURL: "https://a.example"})
	require.NoError(t, err)
	_, err = service.Create(ctx, ownerID, APIInput{Name: "b", Category: "media", BaseURL: "https://b.example"})
	require.NoError(t, err)
	_, err = service.Create(ctx, ownerID, APIInput{Name: "c", Category: "data", BaseURL: "https://c.example", Visibility: "private"})
	require.NoError(t, err)

	apis, total, err := service.ListPublic(ctx, repository.APIFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, apis, 2)

	apis, total, err = service.ListPublic(ctx, repository.APIFilter{Category: "data"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, apis, 1)
	assert.Equal(t, "a", apis[0].Name)

	// Private APIs still show up for their owner
	mine, total, err := service.ListMine(ctx, ownerID, repository.APIFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, mine, 3)
}
