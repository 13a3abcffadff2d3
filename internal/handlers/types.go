package handlers

import "time"

// ShortenRequest is the request body for creating a short link.
type ShortenRequest struct {
	Body struct {
		OriginalURL string `doc:"The URL to shorten" example:"https://example.com/very/long/path" format:"uri" json:"original_url" maxLength:"2048"`
		CustomAlias string `doc:"Custom code to use instead of a generated one" example:"my-link" json:"custom_alias,omitempty" maxLength:"32" minLength:"3" pattern:"^[A-Za-z0-9_-]+$"`
		TTLSeconds  *int   `doc:"Seconds until the link expires; omit for a permanent link" example:"3600" json:"ttl_seconds,omitempty" maximum:"2147483647" minimum:"1"`
	}
}

// ShortenResponse is the response for a successfully created short link.
type ShortenResponse struct {
	Location string `doc:"The short URL" header:"Location"`
	Body     struct {
		ShortURL      string `doc:"The full short URL"                 example:"http://localhost:8888/abc123"       json:"short_url"`
		Code          string `doc:"The short code"                     example:"abc123"                             json:"code"`
		OriginalURL   string `doc:"The original URL"                   example:"https://example.com/very/long/path" json:"original_url"`
		IsCustomAlias bool   `doc:"Whether the caller chose the code"  example:"false"                              json:"is_custom_alias"`
		TTLSeconds    *int   `doc:"Seconds until the link expires"     example:"3600"                               json:"ttl_seconds,omitempty"`
	}
}

// RedirectRequest is the request for redirecting a short link.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse redirects to the original URL. Permanent links answer 301, links
// with a TTL answer 302 so clients do not cache past expiry.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

// AnalyticsRequest is the request for a short link's statistics.
type AnalyticsRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// ReferrerBody is one entry of the top referrers list.
type ReferrerBody struct {
	Referrer string `json:"referrer"`
	Visits   int64  `json:"visits"`
}

// AnalyticsResponse carries aggregated visit statistics.
type AnalyticsResponse struct {
	Body struct {
		Code           string         `json:"code"`
		OriginalURL    string         `json:"original_url"`
		Visits         int64          `json:"visits"`
		UniqueVisitors int64          `json:"unique_visitors"`
		CreatedAt      time.Time      `json:"created_at"`
		LastVisitedAt  *time.Time     `json:"last_visited_at,omitempty"`
		TopReferrers   []ReferrerBody `json:"top_referrers"`
	}
}
