package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
)

// fixedWindowScript increments KEYS[1] unless it already holds ARGV[1] hits.
// ARGV[2] is the window in milliseconds, applied only when the counter is created.
// Returns {count, pttl, counted}.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return {current, redis.call('PTTL', KEYS[1]), 0}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {count, redis.call('PTTL', KEYS[1]), 1}
`)

// RateLimitRedisStore is a Redis implementation of ratelimit.Store.
// The whole read-compare-increment runs as one script, so concurrent hits for
// the same key never overshoot the limit.
type RateLimitRedisStore struct {
	client redis.Scripter
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.Scripter) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client}
}

func (r *RateLimitRedisStore) Hit(ctx context.Context, key string, limit int64, window time.Duration) (ratelimit.Counter, error) {
	res, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Counter{}, fmt.Errorf("rate limit hit %s: %w", key, err)
	}

	if len(res) != 3 {
		return ratelimit.Counter{}, fmt.Errorf("rate limit hit %s: unexpected reply %v", key, res)
	}

	counter := ratelimit.Counter{
		Count:   res[0],
		Counted: res[2] == 1,
	}

	// PTTL is negative when the key has no expiry.
	if res[1] > 0 {
		counter.ResetIn = time.Duration(res[1]) * time.Millisecond
	}

	return counter, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
