package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/storage"
	"gorm.io/gorm"
)

// Read side over the endpoint log stream and the rolling API aggregate.
// Writes go through the stats aggregator, which owns the transactional
// per-call sequence.
type LogRepository struct {
	db *storage.Postgres
}

func NewLogRepository(db *storage.Postgres) *LogRepository {
	return &LogRepository{db: db}
}

// Retrieves all log rows for an API's endpoints since the given time,
// oldest first.
func (r *LogRepository) FindForAPISince(ctx context.Context, apiID uuid.UUID, since time.Time) ([]models.EndpointLog, error) {
	var logs []models.EndpointLog
	err := r.db.DB.WithContext(ctx).
		Joins("JOIN endpoints ON endpoints.id = endpoint_logs.endpoint_id").
		Where("endpoints.api_id = ? AND endpoint_logs.created_at >= ?", apiID, since).
		Order("endpoint_logs.created_at ASC").
		Find(&logs).Error

	return logs, err
}

func (r *LogRepository) FindForEndpoint(ctx context.Context, endpointID uuid.UUID, limit int) ([]models.EndpointLog, error) {
	var logs []models.EndpointLog
	err := r.db.DB.WithContext(ctx).
		Where("endpoint_id = ?", endpointID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error

	return logs, err
}

func (r *LogRepository) GetAPILog(ctx context.Context, apiID uuid.UUID) (*models.APILog, error) {
	var apiLog models.APILog
	err := r.db.DB.WithContext(ctx).
		Where("api_id = ?", apiID).
		First(&apiLog).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &apiLog, err
}
