package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type APIKeyRepository struct {
	db *storage.Postgres
}

func NewAPIKeyRepository(db *storage.Postgres) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Upsert on the (api, user) pair: regenerating a key replaces the old
// token and reactivates the row.
func (r *APIKeyRepository) Upsert(ctx context.Context, apiKey *models.APIKey) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "api_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"key":       apiKey.Key,
				"is_active": true,
			}),
		}).
		Create(apiKey).Error
}

func (r *APIKeyRepository) Find(ctx context.Context, apiID, userID uuid.UUID) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.DB.WithContext(ctx).
		Where("api_id = ? AND user_id = ?", apiID, userID).
		First(&apiKey).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &apiKey, err
}

// Active key row for the (api, user) pair, nil when absent or revoked.
func (r *APIKeyRepository) FindActive(ctx context.Context, apiID, userID uuid.UUID) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := r.db.DB.WithContext(ctx).
		Where("api_id = ? AND user_id = ? AND is_active = ?", apiID, userID, true).
		First(&apiKey).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &apiKey, err
}

func (r *APIKeyRepository) Delete(ctx context.Context, apiID, userID uuid.UUID) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("api_id = ? AND user_id = ?", apiID, userID).
		Delete(&models.APIKey{})

	return result.RowsAffected, result.Error
}
