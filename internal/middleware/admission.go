package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

// Admission returns a Huma middleware that admits requests through the limiter,
// keyed by client IP. It is attached per operation to the routes that create links.
func Admission(
	api huma.API, limiter ratelimit.Admitter, identity *ClientIdentity, logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ip := identity.Resolve(ctx)

		decision, err := limiter.Admit(ctx.Context(), ip)

		switch {
		case err == nil:
			next(ctx)
		case errors.Is(err, ratelimit.ErrRateLimited):
			retryAfter := int64(math.Ceil(decision.RetryAfter.Seconds()))

			logger.Warn("rate limit exceeded",
				zap.String("path", operationPath(ctx)),
				zap.String("client_ip", ip),
				zap.Int64("count", decision.Count),
				zap.Int64("max", decision.Limit),
				zap.Int64("retry_after", retryAfter),
			)

			if retryAfter > 0 {
				ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
			}

			msg := "Rate limit exceeded"
			if retryAfter > 0 {
				msg = fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", retryAfter)
			}

			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
		default:
			logger.Error("rate limit check failed",
				zap.String("path", operationPath(ctx)),
				zap.String("client_ip", ip),
				zap.Error(err),
			)

			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "rate limiter unavailable")
		}
	}
}

// operationPath extracts the route template from the operation, if available.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
