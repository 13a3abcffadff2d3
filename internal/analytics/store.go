package analytics

import (
	"context"
	"time"
)

// TopReferrersLimit caps the referrers reported in Stats.
const TopReferrersLimit = 5

// Store persists analytics events and aggregates them per code.
type Store interface {
	RecordCreated(ctx context.Context, event *LinkCreatedEvent) error
	RecordVisit(ctx context.Context, event *LinkVisitedEvent) error
	Stats(ctx context.Context, code string) (*Stats, error)
}

// Stats is the aggregated view of one short link. Zero values mean no data yet.
type Stats struct {
	Code           string
	Visits         int64
	UniqueVisitors int64
	CreatedAt      time.Time
	LastVisitedAt  time.Time
	TopReferrers   []ReferrerCount
}

// ReferrerCount is the number of visits that came from one referrer.
type ReferrerCount struct {
	Referrer string
	Visits   int64
}
