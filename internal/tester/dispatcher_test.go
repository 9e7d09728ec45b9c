package tester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/stats"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type dispatcherEnv struct {
	dispatcher *Dispatcher
	db         *storage.Postgres
	keys       *repository.APIKeyRepository
	owner      *models.User
	caller     *models.User
	api        *models.API
	endpoint   *models.Endpoint
}

func newDispatcherEnv(t *testing.T, upstreamURL string, timeout time.Duration) *dispatcherEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:dispatcher_%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := &storage.Postgres{DB: gormDB}
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { db.Close() })

	owner := &models.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	caller := &models.User{Username: "caller", Email: "caller@example.com", PasswordHash: "x"}
	require.NoError(t, gormDB.Create(owner).Error)
	require.NoError(t, gormDB.Create(caller).Error)

	api := &models.API{
		OwnerID:  owner.ID,
		Name:     "echo",
		Category: "testing",
		BaseURL:  upstreamURL,
	}
	require.NoError(t, gormDB.Create(api).Error)

	endpoint := &models.Endpoint{
		APIID:  api.ID,
		Path:   "/echo",
		Method: "GET",
	}
	require.NoError(t, gormDB.Create(endpoint).Error)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	codec, err := crypto.NewCodec("dispatcher-test-secret")
	require.NoError(t, err)

	apiRepo := repository.NewAPIRepository(db)
	endpointRepo := repository.NewEndpointRepository(db)
	keyRepo := repository.NewAPIKeyRepository(db)

	dispatcher := NewDispatcher(
		apiRepo, endpointRepo, keyRepo,
		NewBuilder(codec),
		stats.NewAggregator(db, logger),
		timeout,
		logger,
	)

	return &dispatcherEnv{
		dispatcher: dispatcher,
		db:         db,
		keys:       keyRepo,
		owner:      owner,
		caller:     caller,
		api:        api,
		endpoint:   endpoint,
	}
}

func (e *dispatcherEnv) logCount(t *testing.T) int64 {
	t.Helper()

	var count int64
	require.NoError(t, e.db.DB.Model(&models.EndpointLog{}).Count(&count).Error)
	return count
}

func (e *dispatcherEnv) reloadEndpoint(t *testing.T) *models.Endpoint {
	t.Helper()

	var endpoint models.Endpoint
	require.NoError(t, e.db.DB.First(&endpoint, "id = ?", e.endpoint.ID).Error)
	return &endpoint
}

func TestDispatcherSuccessfulCall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"path": %q}`, r.URL.Path)
	}))
	defer upstream.Close()

	env := newDispatcherEnv(t, upstream.URL, 5*time.Second)
	ctx := context.Background()

	result, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.Status)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/echo", data["path"])

	assert.Equal(t, int64(1), env.logCount(t))

	endpoint := env.reloadEndpoint(t)
	assert.Equal(t, int64(1), endpoint.TotalCalls)
	assert.Equal(t, int64(0), endpoint.ErrorCount)

	var apiLog models.APILog
	require.NoError(t, env.db.DB.First(&apiLog, "api_id = ?", env.api.ID).Error)
	assert.Equal(t, int64(1), apiLog.TotalCalls)
}

func TestDispatcherUpstreamErrorIsRecorded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	env := newDispatcherEnv(t, upstream.URL, 5*time.Second)
	ctx := context.Background()

	result, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.Status)

	var entry models.EndpointLog
	require.NoError(t, env.db.DB.First(&entry, "endpoint_id = ?", env.endpoint.ID).Error)
	assert.False(t, entry.Success)
	assert.Contains(t, entry.ErrorMessage, "500")

	endpoint := env.reloadEndpoint(t)
	assert.Equal(t, int64(1), endpoint.TotalCalls)
	assert.Equal(t, int64(1), endpoint.ErrorCount)
}

func TestDispatcherTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer upstream.Close()

	env := newDispatcherEnv(t, upstream.URL, 50*time.Millisecond)
	ctx := context.Background()

	result, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.Status)

	// A timed-out call still leaves a log entry behind
	var entry models.EndpointLog
	require.NoError(t, env.db.DB.First(&entry, "endpoint_id = ?", env.endpoint.ID).Error)
	assert.False(t, entry.Success)
	assert.NotEmpty(t, entry.ErrorMessage)
}

func TestDispatcherRecordsAfterCallerDisconnect(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	env := newDispatcherEnv(t, upstream.URL, 5*time.Second)

	// Caller goes away mid-flight; the executed call must still be logged
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	require.NoError(t, err)
	assert.False(t, result.Success)

	assert.Equal(t, int64(1), env.logCount(t))

	endpoint := env.reloadEndpoint(t)
	assert.Equal(t, int64(1), endpoint.TotalCalls)
	assert.Equal(t, int64(1), endpoint.ErrorCount)
}

func TestDispatcherAuthRequiredEndpoint(t *testing.T) {
	env := newDispatcherEnv(t, "http://127.0.0.1:1", time.Second)
	require.NoError(t, env.db.DB.Model(&models.Endpoint{}).
		Where("id = ?", env.endpoint.ID).
		Update("auth_required", true).Error)

	_, err := env.dispatcher.Test(context.Background(), env.api.ID, env.endpoint.ID, nil, "", RequestBundle{})
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, int64(0), env.logCount(t))
}

func TestDispatcherKeyGating(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	env := newDispatcherEnv(t, upstream.URL, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, env.db.DB.Model(&models.API{}).
		Where("id = ?", env.api.ID).
		Update("requires_api_key", true).Error)

	// Missing key
	_, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	assert.ErrorIs(t, err, ErrAuthRequired)

	// Anonymous caller cannot hold a key
	_, err = env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, nil, "whatever", RequestBundle{})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// Wrong key
	require.NoError(t, env.keys.Upsert(ctx, &models.APIKey{
		APIID:    env.api.ID,
		UserID:   env.caller.ID,
		Key:      "correct-key",
		IsActive: true,
	}))
	_, err = env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "wrong-key", RequestBundle{})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// Denied attempts never reach the log
	assert.Equal(t, int64(0), env.logCount(t))

	// Valid key
	result, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "correct-key", RequestBundle{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Owner bypasses key gating entirely
	result, err = env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.owner.ID, "", RequestBundle{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDispatcherInactiveKeyRejected(t *testing.T) {
	env := newDispatcherEnv(t, "http://127.0.0.1:1", time.Second)
	ctx := context.Background()

	require.NoError(t, env.db.DB.Model(&models.API{}).
		Where("id = ?", env.api.ID).
		Update("requires_api_key", true).Error)

	require.NoError(t, env.keys.Upsert(ctx, &models.APIKey{
		APIID:    env.api.ID,
		UserID:   env.caller.ID,
		Key:      "revoked-key",
		IsActive: true,
	}))
	require.NoError(t, env.db.DB.Model(&models.APIKey{}).
		Where("api_id = ? AND user_id = ?", env.api.ID, env.caller.ID).
		Update("is_active", false).Error)

	_, err := env.dispatcher.Test(ctx, env.api.ID, env.endpoint.ID, &env.caller.ID, "revoked-key", RequestBundle{})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int64(0), env.logCount(t))
}

func TestDispatcherBuildErrorLeavesNoLog(t *testing.T) {
	env := newDispatcherEnv(t, "http://127.0.0.1:1", time.Second)

	require.NoError(t, env.db.DB.Model(&models.Endpoint{}).
		Where("id = ?", env.endpoint.ID).
		Update("path", "/users/:id").Error)

	_, err := env.dispatcher.Test(context.Background(), env.api.ID, env.endpoint.ID, &env.caller.ID, "", RequestBundle{})
	require.Error(t, err)
	assert.True(t, IsBuildError(err))
	assert.Equal(t, int64(0), env.logCount(t))
}

func TestDispatcherUnknownEndpoint(t *testing.T) {
	env := newDispatcherEnv(t, "http://127.0.0.1:1", time.Second)

	_, err := env.dispatcher.Test(context.Background(), env.api.ID, uuid.New(), &env.caller.ID, "", RequestBundle{})
	assert.ErrorIs(t, err, ErrNotFound)
}
