package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newServiceDB(t *testing.T) *storage.Postgres {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := &storage.Postgres{DB: gormDB}
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { db.Close() })

	return db
}

func newKeyService(t *testing.T) (*APIKeyService, *storage.Postgres, *miniredis.Miniredis) {
	t.Helper()

	db := newServiceDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisClient := storage.NewRedisFromClient(client)

	return NewAPIKeyService(repository.NewAPIKeyRepository(db), redisClient), db, mr
}

func TestGenerateIssuesHexKey(t *testing.T) {
	service, _, _ := newKeyService(t)
	ctx := context.Background()

	key, err := service.Generate(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, key, 64)
}

func TestGenerateRotatesExistingKey(t *testing.T) {
	service, db, _ := newKeyService(t)
	ctx := context.Background()

	apiID, userID := uuid.New(), uuid.New()

	first, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)

	second, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Still a single row for the pair
	var count int64
	require.NoError(t, db.DB.Model(&models.APIKey{}).
		Where("api_id = ? AND user_id = ?", apiID, userID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	active, err := service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second, active.Key)
}

func TestFindActiveCachesInRedis(t *testing.T) {
	service, db, mr := newKeyService(t)
	ctx := context.Background()

	apiID, userID := uuid.New(), uuid.New()

	key, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)

	found, err := service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, key, found.Key)
	assert.True(t, mr.Exists(keyCacheKey(apiID, userID)))

	// A cache hit serves the token even if the row disappears underneath
	require.NoError(t, db.DB.Where("api_id = ?", apiID).Delete(&models.APIKey{}).Error)

	cached, err := service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, key, cached.Key)
}

func TestGenerateInvalidatesCache(t *testing.T) {
	service, _, mr := newKeyService(t)
	ctx := context.Background()

	apiID, userID := uuid.New(), uuid.New()

	_, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)

	_, err = service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	require.True(t, mr.Exists(keyCacheKey(apiID, userID)))

	rotated, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(keyCacheKey(apiID, userID)))

	found, err := service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rotated, found.Key)
}

func TestDeleteRevokesAndInvalidates(t *testing.T) {
	service, _, mr := newKeyService(t)
	ctx := context.Background()

	apiID, userID := uuid.New(), uuid.New()

	_, err := service.Generate(ctx, apiID, userID)
	require.NoError(t, err)

	_, err = service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, apiID, userID))
	assert.False(t, mr.Exists(keyCacheKey(apiID, userID)))

	found, err := service.FindActive(ctx, apiID, userID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDeleteMissingKey(t *testing.T) {
	service, _, _ := newKeyService(t)

	err := service.Delete(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindActiveMissingKey(t *testing.T) {
	service, _, _ := newKeyService(t)

	found, err := service.FindActive(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}
