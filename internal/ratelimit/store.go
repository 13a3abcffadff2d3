package ratelimit

import (
	"context"
	"time"
)

// Counter is the state of a fixed-window counter after a hit.
type Counter struct {
	// Count is the number of admissions recorded in the current window.
	Count int64
	// Counted is false when the counter was already at the limit and was left unchanged.
	Counted bool
	// ResetIn is the time left until the window expires.
	ResetIn time.Duration
}

// Store defines the interface for fixed-window counter storage.
type Store interface {
	// Hit atomically increments the counter at key unless it already reached limit.
	// A missing or expired counter starts a new window of the given length with a
	// count of 1. The expiry is set only when the window starts.
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (Counter, error)
}
