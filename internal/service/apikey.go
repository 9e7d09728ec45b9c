package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/storage"
)

const keyCacheTTL = 5 * time.Minute

type APIKeyService struct {
	repo  *repository.APIKeyRepository
	redis *storage.RedisClient
}

func NewAPIKeyService(repo *repository.APIKeyRepository, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{repo: repo, redis: redis}
}

// Generate issues (or regenerates) the consumer key for an (api, user)
// pair. The previous key, if any, stops working immediately.
func (s *APIKeyService) Generate(ctx context.Context, apiID, userID uuid.UUID) (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	key := hex.EncodeToString(keyBytes)

	apiKey := &models.APIKey{
		APIID:    apiID,
		UserID:   userID,
		Key:      key,
		IsActive: true,
	}

	if err := s.repo.Upsert(ctx, apiKey); err != nil {
		return "", fmt.Errorf("failed to store API key: %w", err)
	}

	s.invalidateCache(ctx, apiID, userID)

	return key, nil
}

func (s *APIKeyService) Get(ctx context.Context, apiID, userID uuid.UUID) (*models.APIKey, error) {
	return s.repo.Find(ctx, apiID, userID)
}

func (s *APIKeyService) Delete(ctx context.Context, apiID, userID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, apiID, userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}

	s.invalidateCache(ctx, apiID, userID)

	return nil
}

// The model's JSON shape hides the token, so the cache uses its own
// payload.
type cachedKey struct {
	ID       uuid.UUID `json:"id"`
	Key      string    `json:"key"`
	IsActive bool      `json:"is_active"`
}

// FindActive resolves the active key row for (api, user), serving the
// dispatcher's authorization step. Cached in redis; the store stays the
// source of truth on a miss.
func (s *APIKeyService) FindActive(ctx context.Context, apiID, userID uuid.UUID) (*models.APIKey, error) {
	cacheKey := keyCacheKey(apiID, userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			var entry cachedKey
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				return &models.APIKey{
					ID:       entry.ID,
					APIID:    apiID,
					UserID:   userID,
					Key:      entry.Key,
					IsActive: entry.IsActive,
				}, nil
			}
		}
	}

	apiKey, err := s.repo.FindActive(ctx, apiID, userID)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, nil
	}

	if s.redis != nil {
		payload, err := json.Marshal(cachedKey{ID: apiKey.ID, Key: apiKey.Key, IsActive: apiKey.IsActive})
		if err == nil {
			s.redis.Set(ctx, cacheKey, payload, keyCacheTTL)
		}
	}

	return apiKey, nil
}

func (s *APIKeyService) invalidateCache(ctx context.Context, apiID, userID uuid.UUID) {
	if s.redis != nil {
		s.redis.Del(ctx, keyCacheKey(apiID, userID))
	}
}

func keyCacheKey(apiID, userID uuid.UUID) string {
	return fmt.Sprintf("apikey:cache:%s:%s", apiID, userID)
}
