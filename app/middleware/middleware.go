// Package appMiddleware holds the cross-cutting HTTP middleware mounted in front of the API router.
package appMiddleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/wealthflow/internal/api"
)

// CORS allows browser clients from the given origins to call the API with a bearer token.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// AuthRateLimit throttles credential endpoints per client IP.
// Requests over the limit get the standard 429 error body.
// A non-positive limit disables throttling.
func AuthRateLimit(perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "Rate limit exceeded", slog.String("path", r.URL.Path))
			api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests, slow down")
		}),
	)
}
