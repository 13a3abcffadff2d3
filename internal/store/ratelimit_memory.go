package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/serroba/shortlink/internal/ratelimit"
)

type windowCounter struct {
	count     int64
	expiresAt time.Time
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// It is only shared within a single process.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	counters map[string]*windowCounter
	stop     chan struct{}
	done     chan struct{}
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore(clock clockwork.Clock) *RateLimitMemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &RateLimitMemoryStore{
		clock:    clock,
		counters: make(map[string]*windowCounter),
	}
}

func (s *RateLimitMemoryStore) Hit(_ context.Context, key string, limit int64, window time.Duration) (ratelimit.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	counter, ok := s.counters[key]
	if !ok || !now.Before(counter.expiresAt) {
		counter = &windowCounter{expiresAt: now.Add(window)}
		s.counters[key] = counter
	}

	if counter.count >= limit {
		return ratelimit.Counter{Count: counter.count, ResetIn: counter.expiresAt.Sub(now)}, nil
	}

	counter.count++

	return ratelimit.Counter{Count: counter.count, Counted: true, ResetIn: counter.expiresAt.Sub(now)}, nil
}

// Prune drops expired counters and returns how many were removed.
func (s *RateLimitMemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0

	for key, counter := range s.counters {
		if !now.Before(counter.expiresAt) {
			delete(s.counters, key)
			removed++
		}
	}

	return removed
}

// StartPruning prunes expired counters every interval until Shutdown is called.
// A non-positive interval falls back to the limiter's default window.
func (s *RateLimitMemoryStore) StartPruning(interval time.Duration) {
	if interval <= 0 {
		interval = ratelimit.DefaultWindow
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(interval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.Chan():
				s.Prune()
			}
		}
	}()
}

// Shutdown stops background pruning, if started.
func (s *RateLimitMemoryStore) Shutdown() error {
	if s.stop == nil {
		return nil
	}

	close(s.stop)
	<-s.done
	s.stop = nil

	return nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
