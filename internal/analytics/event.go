package analytics

import "time"

const (
	TopicLinkCreated = "link.created"
	TopicLinkVisited = "link.visited"
)

// LinkCreatedEvent is emitted after a short link has been stored.
type LinkCreatedEvent struct {
	Code          string    `json:"code"`
	OriginalURL   string    `json:"originalUrl"`
	IsCustomAlias bool      `json:"isCustomAlias"`
	TTLSeconds    *int      `json:"ttlSeconds,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	ClientIP      string    `json:"clientIp"`
	UserAgent     string    `json:"userAgent"`
}

// LinkVisitedEvent is emitted when a short link is resolved to a redirect.
type LinkVisitedEvent struct {
	Code      string    `json:"code"`
	VisitedAt time.Time `json:"visitedAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer,omitempty"`
}
