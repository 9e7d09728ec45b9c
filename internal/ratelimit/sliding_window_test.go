package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nexapi/nexapi/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int, window time.Duration) *SlidingWindowLimiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewSlidingWindowLimiter(storage.NewRedisFromClient(client), limit, window)
}

func TestAllowUpToLimit(t *testing.T) {
	limiter := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "caller-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "caller-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRemainingDecreases(t *testing.T) {
	limiter := newLimiter(t, 5, time.Minute)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)

	remaining, err = limiter.Remaining(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestWindowSlides(t *testing.T) {
	limiter := newLimiter(t, 1, 50*time.Millisecond)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(60 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "caller-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
