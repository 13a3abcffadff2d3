package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRateLimitRedisStore(t *testing.T) {
	t.Run("creates counter with window expiry", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)

		counter, err := s.Hit(context.Background(), "rate_limit:1.2.3.4", 5, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), counter.Count)
		assert.True(t, counter.Counted)
		assert.Equal(t, time.Minute, counter.ResetIn)
		assert.Equal(t, time.Minute, mr.TTL("rate_limit:1.2.3.4"))
	})

	t.Run("does not refresh expiry on later hits", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)

		_, _ = s.Hit(context.Background(), "k", 5, time.Minute)
		mr.FastForward(20 * time.Second)

		counter, err := s.Hit(context.Background(), "k", 5, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(2), counter.Count)
		assert.Equal(t, 40*time.Second, mr.TTL("k"))
	})

	t.Run("stops counting at the limit", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)

		for range 3 {
			_, _ = s.Hit(context.Background(), "k", 3, time.Minute)
		}

		counter, err := s.Hit(context.Background(), "k", 3, time.Minute)

		require.NoError(t, err)
		assert.False(t, counter.Counted)
		assert.Equal(t, int64(3), counter.Count)

		value, _ := mr.Get("k")
		assert.Equal(t, "3", value)
	})

	t.Run("restarts after the key expires", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)

		_, _ = s.Hit(context.Background(), "k", 1, time.Minute)
		mr.FastForward(61 * time.Second)

		counter, err := s.Hit(context.Background(), "k", 1, time.Minute)

		require.NoError(t, err)
		assert.True(t, counter.Counted)
		assert.Equal(t, int64(1), counter.Count)
	})

	t.Run("concurrent hits never exceed the limit", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			counted int
		)

		for range 20 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				counter, err := s.Hit(context.Background(), "k", 5, time.Minute)
				if err == nil && counter.Counted {
					mu.Lock()
					counted++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 5, counted)

		value, _ := mr.Get("k")
		assert.Equal(t, "5", value)
	})

	t.Run("returns error when redis is down", func(t *testing.T) {
		mr, client := newMiniredis(t)
		s := store.NewRateLimitRedisStore(client)
		mr.Close()

		_, err := s.Hit(context.Background(), "k", 5, time.Minute)

		assert.Error(t, err)
	})
}
