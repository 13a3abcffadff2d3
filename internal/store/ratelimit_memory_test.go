package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMemoryStore(t *testing.T) {
	t.Run("counts hits within the window", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore(clockwork.NewFakeClock())

		for want := int64(1); want <= 3; want++ {
			counter, err := s.Hit(context.Background(), "key1", 5, time.Minute)

			require.NoError(t, err)
			assert.Equal(t, want, counter.Count)
			assert.True(t, counter.Counted)
		}
	})

	t.Run("does not increment past the limit", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := store.NewRateLimitMemoryStore(clock)

		_, _ = s.Hit(context.Background(), "key1", 2, time.Minute)
		_, _ = s.Hit(context.Background(), "key1", 2, time.Minute)
		clock.Advance(10 * time.Second)

		counter, err := s.Hit(context.Background(), "key1", 2, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(2), counter.Count)
		assert.False(t, counter.Counted)
		assert.Equal(t, 50*time.Second, counter.ResetIn)
	})

	t.Run("tracks keys independently", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore(clockwork.NewFakeClock())

		_, _ = s.Hit(context.Background(), "key1", 5, time.Minute)
		_, _ = s.Hit(context.Background(), "key1", 5, time.Minute)

		counter, err := s.Hit(context.Background(), "key2", 5, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), counter.Count, "key2 should have its own counter")
	})

	t.Run("starts a new window after expiry", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := store.NewRateLimitMemoryStore(clock)

		_, _ = s.Hit(context.Background(), "key1", 1, time.Minute)
		clock.Advance(time.Minute)

		counter, err := s.Hit(context.Background(), "key1", 1, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), counter.Count)
		assert.True(t, counter.Counted)
		assert.Equal(t, time.Minute, counter.ResetIn)
	})

	t.Run("window is anchored at the first hit", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		s := store.NewRateLimitMemoryStore(clock)

		_, _ = s.Hit(context.Background(), "key1", 5, time.Minute)
		clock.Advance(40 * time.Second)
		_, _ = s.Hit(context.Background(), "key1", 5, time.Minute)
		clock.Advance(20 * time.Second)

		counter, _ := s.Hit(context.Background(), "key1", 5, time.Minute)

		assert.Equal(t, int64(1), counter.Count, "later hits must not extend the window")
	})
}

func TestRateLimitMemoryStore_Prune(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := store.NewRateLimitMemoryStore(clock)

	_, _ = s.Hit(context.Background(), "short", 5, time.Second)
	_, _ = s.Hit(context.Background(), "long", 5, time.Hour)
	clock.Advance(time.Minute)

	assert.Equal(t, 1, s.Prune())
	assert.Equal(t, 0, s.Prune())
}

func TestRateLimitMemoryStore_Shutdown(t *testing.T) {
	t.Run("is a no-op when pruning never started", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore(nil)

		assert.NoError(t, s.Shutdown())
	})

	t.Run("stops the pruning loop", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore(clockwork.NewFakeClock())
		s.StartPruning(time.Minute)

		assert.NoError(t, s.Shutdown())
		assert.NoError(t, s.Shutdown())
	})

	t.Run("falls back to the default window for a zero interval", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore(clockwork.NewRealClock())

		require.NotPanics(t, func() { s.StartPruning(0) })
		assert.NoError(t, s.Shutdown())
	})
}
