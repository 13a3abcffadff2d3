package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/analytics"
)

const keyPrefix = "analytics:"

// Redis aggregates analytics in Redis. Per code it keeps a hash with counters and
// timestamps, a HyperLogLog of client IPs and a sorted set of referrers.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a Redis-backed analytics store.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func statsKey(code string) string     { return keyPrefix + code }
func visitorsKey(code string) string  { return keyPrefix + code + ":visitors" }
func referrersKey(code string) string { return keyPrefix + code + ":referrers" }

func (r *Redis) RecordCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	err := r.client.HSet(ctx, statsKey(event.Code),
		"created_at", event.CreatedAt.UnixNano(),
		"original_url", event.OriginalURL,
	).Err()
	if err != nil {
		return fmt.Errorf("record created %s: %w", event.Code, err)
	}

	return nil
}

// recordVisitScript applies a visit in one step. The reads run first so a key of the
// wrong type fails the script before anything is written. last_visited_at only moves
// forward, so reordered events do not rewind it.
var recordVisitScript = redis.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], "last_visited_at") or "0")
if ARGV[2] ~= "" then
	redis.call("PFCOUNT", KEYS[2])
end
if ARGV[3] ~= "" then
	redis.call("ZSCORE", KEYS[3], ARGV[3])
end

redis.call("HINCRBY", KEYS[1], "visits", 1)
if ARGV[2] ~= "" then
	redis.call("PFADD", KEYS[2], ARGV[2])
end
if ARGV[3] ~= "" then
	redis.call("ZINCRBY", KEYS[3], 1, ARGV[3])
end
if tonumber(ARGV[1]) > current then
	redis.call("HSET", KEYS[1], "last_visited_at", ARGV[1])
end
return 1
`)

// RecordVisit applies one visit atomically, either fully or not at all, so a nacked
// event is not counted twice on redelivery.
func (r *Redis) RecordVisit(ctx context.Context, event *analytics.LinkVisitedEvent) error {
	keys := []string{statsKey(event.Code), visitorsKey(event.Code), referrersKey(event.Code)}

	// Milliseconds keep the timestamp within Lua's exact number range.
	err := recordVisitScript.Run(ctx, r.client, keys,
		event.VisitedAt.UnixMilli(), event.ClientIP, event.Referrer,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("record visit %s: %w", event.Code, err)
	}

	return nil
}

func (r *Redis) Stats(ctx context.Context, code string) (*analytics.Stats, error) {
	var (
		fields    *redis.MapStringStringCmd
		visitors  *redis.IntCmd
		referrers *redis.ZSliceCmd
	)

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, statsKey(code))
		visitors = pipe.PFCount(ctx, visitorsKey(code))
		referrers = pipe.ZRevRangeWithScores(ctx, referrersKey(code), 0, analytics.TopReferrersLimit-1)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read stats %s: %w", code, err)
	}

	stats := &analytics.Stats{Code: code, UniqueVisitors: visitors.Val()}
	values := fields.Val()

	if n, err := strconv.ParseInt(values["visits"], 10, 64); err == nil {
		stats.Visits = n
	}

	if ns, err := strconv.ParseInt(values["created_at"], 10, 64); err == nil {
		stats.CreatedAt = time.Unix(0, ns).UTC()
	}

	if ms, err := strconv.ParseInt(values["last_visited_at"], 10, 64); err == nil {
		stats.LastVisitedAt = time.UnixMilli(ms).UTC()
	}

	for _, z := range referrers.Val() {
		ref, _ := z.Member.(string)
		stats.TopReferrers = append(stats.TopReferrers, analytics.ReferrerCount{
			Referrer: ref,
			Visits:   int64(z.Score),
		})
	}

	return stats, nil
}

var _ analytics.Store = (*Redis)(nil)
