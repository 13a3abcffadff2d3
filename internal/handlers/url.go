package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jonboulle/clockwork"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Shortener creates short links.
type Shortener interface {
	Shorten(ctx context.Context, req shortener.Request) (*shortener.ShortLink, error)
}

// URLHandler handles short link creation, redirects and statistics.
type URLHandler struct {
	shortener  Shortener
	store      shortener.Repository
	stats      analytics.Store
	baseURL    string
	publishers analytics.Publishers
	clock      clockwork.Clock
	logger     *zap.Logger
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(
	links Shortener,
	store shortener.Repository,
	stats analytics.Store,
	baseURL string,
	publishers analytics.Publishers,
	clock clockwork.Clock,
	logger *zap.Logger,
) *URLHandler {
	return &URLHandler{
		shortener:  links,
		store:      store,
		stats:      stats,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publishers: publishers,
		clock:      clock,
		logger:     logger,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	link, err := h.shortener.Shorten(ctx, shortener.Request{
		OriginalURL: req.Body.OriginalURL,
		Alias:       req.Body.CustomAlias,
		TTLSeconds:  req.Body.TTLSeconds,
	})
	if err != nil {
		return nil, h.shortenError(err, req.Body.CustomAlias)
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.LinkCreatedEvent{
		Code:          string(link.Code),
		OriginalURL:   link.OriginalURL,
		IsCustomAlias: link.IsCustomAlias,
		TTLSeconds:    link.TTLSeconds,
		CreatedAt:     link.CreatedAt,
		ClientIP:      meta.ClientIP,
		UserAgent:     meta.UserAgent,
	}

	if err := h.publishers.LinkCreated(h.eventContext(ctx), event); err != nil {
		h.logger.Error("failed to publish analytics event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	shortURL := h.baseURL + "/" + string(link.Code)

	resp := &ShortenResponse{}
	resp.Location = shortURL
	resp.Body.ShortURL = shortURL
	resp.Body.Code = string(link.Code)
	resp.Body.OriginalURL = link.OriginalURL
	resp.Body.IsCustomAlias = link.IsCustomAlias
	resp.Body.TTLSeconds = link.TTLSeconds

	return resp, nil
}

func (h *URLHandler) shortenError(err error, alias string) error {
	switch {
	case errors.Is(err, shortener.ErrAliasConflict):
		h.logger.Info("custom alias rejected", zap.String("alias", alias))

		return huma.Error400BadRequest("Custom alias already in use")
	case errors.Is(err, shortener.ErrInvalidTTL):
		return huma.Error400BadRequest("ttl_seconds out of range")
	case errors.Is(err, shortener.ErrGenerationExhausted):
		h.logger.Error("code generation exhausted", zap.Error(err))

		return huma.Error500InternalServerError("Failed to generate unique short code")
	default:
		h.logger.Error("failed to create short link", zap.Error(err))

		return huma.Error500InternalServerError("failed to create short link")
	}
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	link, err := h.find(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	if link.Expired(now) {
		return nil, huma.Error410Gone("short link expired")
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.LinkVisitedEvent{
		Code:      req.Code,
		VisitedAt: now.UTC(),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	}

	if err = h.publishers.LinkVisited(h.eventContext(ctx), event); err != nil {
		h.logger.Error("failed to publish access event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	resp := &RedirectResponse{
		Status:   http.StatusMovedPermanently,
		Location: link.OriginalURL,
	}

	if link.TTLSeconds != nil {
		resp.Status = http.StatusFound
	}

	return resp, nil
}

func (h *URLHandler) GetAnalytics(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResponse, error) {
	link, err := h.find(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	stats, err := h.stats.Stats(ctx, req.Code)
	if err != nil {
		h.logger.Error("failed to read analytics", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to read analytics")
	}

	resp := &AnalyticsResponse{}
	resp.Body.Code = string(link.Code)
	resp.Body.OriginalURL = link.OriginalURL
	resp.Body.Visits = stats.Visits
	resp.Body.UniqueVisitors = stats.UniqueVisitors
	resp.Body.CreatedAt = link.CreatedAt
	resp.Body.TopReferrers = make([]ReferrerBody, 0, len(stats.TopReferrers))

	if !stats.LastVisitedAt.IsZero() {
		last := stats.LastVisitedAt
		resp.Body.LastVisitedAt = &last
	}

	for _, r := range stats.TopReferrers {
		resp.Body.TopReferrers = append(resp.Body.TopReferrers, ReferrerBody{Referrer: r.Referrer, Visits: r.Visits})
	}

	return resp, nil
}

func (h *URLHandler) find(ctx context.Context, code string) (*shortener.ShortLink, error) {
	link, err := h.store.FindByCode(ctx, shortener.Code(code))
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			return nil, huma.Error404NotFound("short link not found")
		}

		h.logger.Error("failed to get short link", zap.String("code", code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to get short link")
	}

	return link, nil
}

// eventContext carries the request ID into published events. It is detached from
// request cancellation so a client hanging up does not drop the event.
func (h *URLHandler) eventContext(ctx context.Context) context.Context {
	return messaging.WithCorrelationID(context.WithoutCancel(ctx), RequestMetaFromContext(ctx).RequestID)
}
