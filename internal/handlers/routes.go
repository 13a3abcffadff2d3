package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the short link routes. Only link creation passes through
// admission; redirects and statistics are not rate limited.
func RegisterRoutes(api huma.API, urlHandler *URLHandler, admission func(huma.Context, func(huma.Context))) {
	var createMiddlewares huma.Middlewares
	if admission != nil {
		createMiddlewares = huma.Middlewares{admission}
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-short-link",
		Method:        http.MethodPost,
		Path:          "/shorten",
		Summary:       "Create short link",
		Description:   "Creates a short link with a generated code or a custom alias, optionally expiring after ttl_seconds.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable},
		Middlewares:   createMiddlewares,
	}, urlHandler.CreateShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "get-link-analytics",
		Method:      http.MethodGet,
		Path:        "/analytics/{code}",
		Summary:     "Get link analytics",
		Description: "Returns visit statistics for a short link.",
		Tags:        []string{"Analytics"},
		Errors:      []int{http.StatusNotFound},
	}, urlHandler.GetAnalytics)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusNotFound, http.StatusGone},
	}, urlHandler.RedirectToURL)
}
