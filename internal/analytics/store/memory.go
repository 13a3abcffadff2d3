package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/serroba/shortlink/internal/analytics"
	"go.uber.org/zap"
)

type linkStats struct {
	stats     analytics.Stats
	visitors  map[string]struct{}
	referrers map[string]int64
}

// Memory keeps analytics in process and logs every event it records.
type Memory struct {
	mu     sync.Mutex
	links  map[string]*linkStats
	logger *zap.Logger
}

// NewMemory creates an in-memory analytics store.
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		links:  make(map[string]*linkStats),
		logger: logger,
	}
}

func (m *Memory) RecordCreated(_ context.Context, event *analytics.LinkCreatedEvent) error {
	m.logger.Info("link created event received",
		zap.String("code", event.Code),
		zap.String("originalUrl", event.OriginalURL),
		zap.Bool("isCustomAlias", event.IsCustomAlias),
		zap.Time("createdAt", event.CreatedAt),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entry(event.Code).stats.CreatedAt = event.CreatedAt.UTC()

	return nil
}

func (m *Memory) RecordVisit(_ context.Context, event *analytics.LinkVisitedEvent) error {
	m.logger.Debug("link visited event received",
		zap.String("code", event.Code),
		zap.Time("visitedAt", event.VisitedAt),
		zap.String("referrer", event.Referrer),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(event.Code)
	e.stats.Visits++

	if event.VisitedAt.After(e.stats.LastVisitedAt) {
		e.stats.LastVisitedAt = event.VisitedAt.UTC()
	}

	if event.ClientIP != "" {
		e.visitors[event.ClientIP] = struct{}{}
	}

	if event.Referrer != "" {
		e.referrers[event.Referrer]++
	}

	return nil
}

func (m *Memory) Stats(_ context.Context, code string) (*analytics.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.links[code]
	if !ok {
		return &analytics.Stats{Code: code}, nil
	}

	stats := e.stats
	stats.UniqueVisitors = int64(len(e.visitors))
	stats.TopReferrers = make([]analytics.ReferrerCount, 0, len(e.referrers))

	for ref, n := range e.referrers {
		stats.TopReferrers = append(stats.TopReferrers, analytics.ReferrerCount{Referrer: ref, Visits: n})
	}

	slices.SortFunc(stats.TopReferrers, func(a, b analytics.ReferrerCount) int {
		if c := cmp.Compare(b.Visits, a.Visits); c != 0 {
			return c
		}

		return cmp.Compare(a.Referrer, b.Referrer)
	})

	if len(stats.TopReferrers) > analytics.TopReferrersLimit {
		stats.TopReferrers = stats.TopReferrers[:analytics.TopReferrersLimit]
	}

	return &stats, nil
}

func (m *Memory) entry(code string) *linkStats {
	e, ok := m.links[code]
	if !ok {
		e = &linkStats{
			stats:     analytics.Stats{Code: code},
			visitors:  make(map[string]struct{}),
			referrers: make(map[string]int64),
		}
		m.links[code] = e
	}

	return e
}

var _ analytics.Store = (*Memory)(nil)
