package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Endpoint counters bump in a single statement so concurrent calls
// cannot lose updates.
const incrementEndpointSQL = `
UPDATE endpoints
SET total_calls = total_calls + 1,
    error_count = error_count + ?
WHERE id = ?`

// Lazy-created rolling aggregate, one row per API. The incremental mean
// is computed in the database against the pre-update row, which keeps
// the update O(1) and safe under concurrency: both expressions read the
// same old values within one atomic statement.
const upsertAPILogSQL = `
INSERT INTO api_logs (api_id, total_calls, total_errors, average_latency, created_at, updated_at)
VALUES (?, 1, ?, ?, ?, ?)
ON CONFLICT (api_id) DO UPDATE SET
    average_latency = (api_logs.average_latency * api_logs.total_calls + ?) / (api_logs.total_calls + 1),
    total_calls = api_logs.total_calls + 1,
    total_errors = api_logs.total_errors + ?,
    updated_at = ?`

// Aggregator folds one executed test call into the endpoint log stream
// and both aggregate layers. Best effort: failures are logged and
// swallowed, never surfaced to the test caller.
type Aggregator struct {
	db     *storage.Postgres
	logger *logrus.Logger
}

func NewAggregator(db *storage.Postgres, logger *logrus.Logger) *Aggregator {
	return &Aggregator{db: db, logger: logger}
}

// Record appends an EndpointLog row, bumps the endpoint counters and
// folds the latency into the API's running average, all in one
// transaction.
func (a *Aggregator) Record(ctx context.Context, endpointID, apiID uuid.UUID, userID *uuid.UUID, success bool, latencyMs int64, errorMessage string) {
	now := time.Now().UTC()

	errInc := 0
	if !success {
		errInc = 1
	}

	entry := &models.EndpointLog{
		EndpointID:   endpointID,
		UserID:       userID,
		Success:      success,
		Latency:      latencyMs,
		ErrorMessage: errorMessage,
		CreatedAt:    now,
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if err := tx.Exec(incrementEndpointSQL, errInc, endpointID).Error; err != nil {
			return err
		}

		return tx.Exec(upsertAPILogSQL,
			apiID, errInc, float64(latencyMs), now, now,
			float64(latencyMs), errInc, now,
		).Error
	})

	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"endpoint_id": endpointID,
			"api_id":      apiID,
		}).WithError(err).Warn("failed to record test call")
	}
}
