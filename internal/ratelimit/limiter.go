package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// KeyPrefix namespaces counter keys in the shared store.
	KeyPrefix = "rate_limit:"

	DefaultLimit  int64 = 5
	DefaultWindow       = 60 * time.Second
)

var (
	// ErrRateLimited means the identity used up its admissions for the current window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnavailable means the counter store could not be reached and the
	// limiter is configured to fail closed.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// FailurePolicy decides the outcome when the counter store fails.
type FailurePolicy int

const (
	// FailClosed rejects requests with ErrUnavailable.
	FailClosed FailurePolicy = iota
	// FailOpen admits requests and logs the store failure.
	FailOpen
)

// Decision describes the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration // zero when allowed
}

// Admitter decides whether a caller may proceed.
type Admitter interface {
	Admit(ctx context.Context, identity string) (Decision, error)
}

// FixedWindowLimiter admits up to limit requests per identity in windows anchored
// at the first request of each window.
type FixedWindowLimiter struct {
	store  Store
	limit  int64
	window time.Duration
	policy FailurePolicy
	logger *zap.Logger
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(
	store Store, limit int64, window time.Duration, policy FailurePolicy, logger *zap.Logger,
) *FixedWindowLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		policy: policy,
		logger: logger,
	}
}

// Admit records a request for identity. It returns ErrRateLimited along with the
// decision when the identity is over its limit.
func (l *FixedWindowLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	counter, err := l.store.Hit(ctx, KeyPrefix+identity, l.limit, l.window)
	if err != nil {
		return l.onStoreError(identity, err)
	}

	decision := Decision{
		Allowed: counter.Counted,
		Count:   counter.Count,
		Limit:   l.limit,
	}

	if !counter.Counted {
		decision.RetryAfter = counter.ResetIn

		return decision, ErrRateLimited
	}

	return decision, nil
}

func (l *FixedWindowLimiter) onStoreError(identity string, err error) (Decision, error) {
	if l.policy == FailOpen {
		l.logger.Warn("rate limit store failed, admitting request",
			zap.String("identity", identity),
			zap.Error(err),
		)

		return Decision{Allowed: true, Limit: l.limit}, nil
	}

	return Decision{Limit: l.limit}, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Limit returns the configured number of admissions per window.
func (l *FixedWindowLimiter) Limit() int64 {
	return l.limit
}

// Window returns the configured window length.
func (l *FixedWindowLimiter) Window() time.Duration {
	return l.window
}
