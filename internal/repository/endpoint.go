package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/storage"
	"gorm.io/gorm"
)

type EndpointRepository struct {
	db *storage.Postgres
}

func NewEndpointRepository(db *storage.Postgres) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Create(ctx context.Context, endpoint *models.Endpoint) error {
	return r.db.DB.WithContext(ctx).Create(endpoint).Error
}

func (r *EndpointRepository) FindByAPI(ctx context.Context, apiID uuid.UUID) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.db.DB.WithContext(ctx).
		Where("api_id = ?", apiID).
		Order("created_at ASC").
		Find(&endpoints).Error

	return endpoints, err
}

func (r *EndpointRepository) FindByID(ctx context.Context, apiID, id uuid.UUID) (*models.Endpoint, error) {
	var endpoint models.Endpoint
	err := r.db.DB.WithContext(ctx).
		Where("api_id = ? AND id = ?", apiID, id).
		First(&endpoint).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &endpoint, err
}

func (r *EndpointRepository) Update(ctx context.Context, apiID, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Endpoint{}).
		Where("api_id = ? AND id = ?", apiID, id).
		Updates(updates).Error
}

func (r *EndpointRepository) Delete(ctx context.Context, apiID, id uuid.UUID) error {
	return r.db.DB.WithContext(ctx).
		Where("api_id = ? AND id = ?", apiID, id).
		Delete(&models.Endpoint{}).Error
}
