package shortener

import (
	"math"
	"time"
)

// MaxTTLSeconds is the largest accepted TTL, the range of the ttl_seconds column.
const MaxTTLSeconds = math.MaxInt32

// Code represents a short link code, either generated or a custom alias.
type Code string

// ShortLink represents a shortened URL entity.
type ShortLink struct {
	Code          Code
	OriginalURL   string
	IsCustomAlias bool
	TTLSeconds    *int // nil means the link never expires
	CreatedAt     time.Time
}

// ExpiresAt returns the expiry time of the link and whether it has one.
func (l *ShortLink) ExpiresAt() (time.Time, bool) {
	if l.TTLSeconds == nil {
		return time.Time{}, false
	}

	ttl := time.Duration(math.MaxInt64)
	if seconds := int64(*l.TTLSeconds); seconds < int64(ttl/time.Second) {
		ttl = time.Duration(seconds) * time.Second
	}

	return l.CreatedAt.Add(ttl), true
}

// Expired reports whether the link is past its TTL at the given instant.
// Expired links still hold their code.
func (l *ShortLink) Expired(now time.Time) bool {
	expiresAt, ok := l.ExpiresAt()

	return ok && !now.Before(expiresAt)
}
