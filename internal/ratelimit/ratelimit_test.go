package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewMemory()

		for i := 0; i < 5; i++ {
			allowed, remaining, _ := limiter.Check(ctx, "ip-1", 10)
			assert.True(t, allowed)
			assert.Equal(t, 10-i-1, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewMemory()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "ip-2", 5)
		}

		allowed, remaining, _ := limiter.Check(ctx, "ip-2", 5)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewMemory()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "ip-a", 5)
		}

		allowed, _, _ := limiter.Check(ctx, "ip-b", 5)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemory()
		now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		allowed, _, resetAt := limiter.Check(ctx, "ip-3", 1)
		require.True(t, allowed)
		assert.Equal(t, now.Add(time.Minute).Unix(), resetAt)

		allowed, _, _ = limiter.Check(ctx, "ip-3", 1)
		assert.False(t, allowed)

		now = now.Add(time.Minute + time.Second)
		allowed, _, _ = limiter.Check(ctx, "ip-3", 1)
		assert.True(t, allowed)
	})

	t.Run("drops idle keys on cleanup", func(t *testing.T) {
		limiter := NewMemory()
		now := time.Now()
		limiter.now = func() time.Time { return now }

		limiter.Check(ctx, "idle", 5)
		require.Equal(t, 1, limiter.Len())

		now = now.Add(10 * time.Minute)
		limiter.Check(ctx, "fresh", 5)
		assert.Equal(t, 1, limiter.Len())
	})
}

func TestRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	limiter := NewRedis(client)
	allowed, remaining, resetAt := limiter.Check(context.Background(), "ip-1", 3)

	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
	assert.Greater(t, resetAt, time.Now().Unix())
}
