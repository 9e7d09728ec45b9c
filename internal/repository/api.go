package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/storage"
	"gorm.io/gorm"
)

type APIRepository struct {
	db *storage.Postgres
}

func NewAPIRepository(db *storage.Postgres) *APIRepository {
	return &APIRepository{db: db}
}

// Listing options for the catalog pages
type APIFilter struct {
	Category string
	Search   string
	Sort     string
	Page     int
	Limit    int
}

var sortFieldMap = map[string]string{
	"views":     "total_views",
	"createdAt": "created_at",
}

func (f APIFilter) orderClause() string {
	if field, ok := sortFieldMap[f.Sort]; ok {
		return field + " DESC"
	}
	return "created_at DESC"
}

func (r *APIRepository) Create(ctx context.Context, api *models.API) error {
	return r.db.DB.WithContext(ctx).Create(api).Error
}

func (r *APIRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.API, error) {
	var api models.API
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&api).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &api, err
}

// Retrieves public APIs for the discovery page, with total count
func (r *APIRepository) FindPublic(ctx context.Context, filter APIFilter) ([]models.API, int64, error) {
	query := r.db.DB.WithContext(ctx).
		Model(&models.API{}).
		Where("visibility = ?", "public")

	query = applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apis []models.API
	err := query.
		Order(filter.orderClause()).
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&apis).Error

	return apis, total, err
}

// Retrieves APIs owned by a user, with total count
func (r *APIRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter APIFilter) ([]models.API, int64, error) {
	query := r.db.DB.WithContext(ctx).
		Model(&models.API{}).
		Where("owner_id = ?", ownerID)

	query = applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apis []models.API
	err := query.
		Order(filter.orderClause()).
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&apis).Error

	return apis, total, err
}

func applyFilter(query *gorm.DB, filter APIFilter) *gorm.DB {
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}
	return query
}

func (r *APIRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.API{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Atomic view counter bump
func (r *APIRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.API{}).
		Where("id = ?", id).
		UpdateColumn("total_views", gorm.Expr("total_views + 1")).Error
}

// Removes the API and everything hanging off it in one transaction.
func (r *APIRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		if err := tx.
			Where("endpoint_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.Endpoint{}).
				Select("id").
				Where("api_id = ?", id)).
			Delete(&models.EndpointLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("api_id = ?", id).Delete(&models.Endpoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("api_id = ?", id).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("api_id = ?", id).Delete(&models.APILog{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&models.API{}).Error
	})
}
