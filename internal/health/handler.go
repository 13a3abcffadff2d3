package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// checkTimeout bounds each dependency ping.
const checkTimeout = 2 * time.Second

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Ping calls f.
func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler reports the status of each registered dependency.
type Handler struct {
	checkers map[string]Checker
}

// NewHandler creates a health handler. Keys name the dependencies in the response,
// e.g. "redis" or "postgres". An empty map reports "ok".
func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status       string            `doc:"ok or degraded"                      example:"ok" json:"status"`
		Dependencies map[string]string `doc:"healthy or unhealthy per dependency" json:"dependencies,omitempty"`
	}
}

// Check pings all dependencies concurrently.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(h.checkers))
	)

	for name, checker := range h.checkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			status := "healthy"
			if err := checker.Ping(ctx); err != nil {
				status = "unhealthy"
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()
		}()
	}

	wg.Wait()

	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Dependencies = results

	for _, status := range results {
		if status != "healthy" {
			resp.Body.Status = "degraded"
		}
	}

	return resp, nil
}

// Names returns the registered dependency names in order.
func (h *Handler) Names() []string {
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/health", h.Check)
}
