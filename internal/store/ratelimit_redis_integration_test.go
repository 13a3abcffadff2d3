//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestRateLimitRedisStoreIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	s := store.NewRateLimitRedisStore(client)

	t.Run("admits up to the limit", func(t *testing.T) {
		key := "rate_limit:integration-limit"
		defer client.Del(ctx, key)

		for range 5 {
			counter, err := s.Hit(ctx, key, 5, time.Minute)
			require.NoError(t, err)
			assert.True(t, counter.Counted)
		}

		counter, err := s.Hit(ctx, key, 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, counter.Counted)
		assert.Equal(t, int64(5), counter.Count)
	})

	t.Run("sets expiry on first hit", func(t *testing.T) {
		key := "rate_limit:integration-ttl"
		defer client.Del(ctx, key)

		_, err := s.Hit(ctx, key, 5, time.Minute)
		require.NoError(t, err)

		ttl, err := client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 55*time.Second)
	})

	t.Run("resets after short window", func(t *testing.T) {
		key := "rate_limit:integration-reset"
		defer client.Del(ctx, key)

		_, _ = s.Hit(ctx, key, 1, 100*time.Millisecond)
		time.Sleep(150 * time.Millisecond)

		counter, err := s.Hit(ctx, key, 1, 100*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, counter.Counted)
	})
}
