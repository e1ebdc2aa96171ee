package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/wealthflow/app/observability/metrics"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

type contextKey string

const principalKey contextKey = "principal"

const bearerPrefix = "Bearer "

// WithPrincipal returns a child context carrying p.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(principalKey).(types.Principal)
	return p, ok
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.UserID, ok
}

func GetUserRoleFromContext(ctx context.Context) (types.Role, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Role, ok
}

// Authenticate validates a bearer token when one is present.
//
// Requests without "Authorization: Bearer ..." continue anonymously. A token
// that fails validation ends the request with 401 before any handler runs.
// A valid token installs the principal on the request context, which is
// discarded with the request.
func Authenticate(logger *slog.Logger, tokens TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := tokens.Parse(strings.TrimSpace(authHeader[len(bearerPrefix):]))
			if err != nil {
				l.WarnContext(ctx, "Rejected bearer token", slog.String("path", r.URL.Path))
				metrics.Get().AuthRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_token")))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			l.DebugContext(ctx, "Authentication successful", slog.String("userID", principal.UserID.String()))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireAuthentication rejects anonymous requests. Runs AFTER Authenticate.
func RequireAuthentication(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				logger.DebugContext(r.Context(), "Anonymous request to protected route", slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only principals holding one of roles. Runs AFTER Authenticate.
func RequireRole(logger *slog.Logger, roles ...types.Role) func(next http.Handler) http.Handler {
	allowed := make(map[types.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, ok := PrincipalFromContext(ctx)
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				logger.WarnContext(ctx, "Role check failed",
					slog.Any("allowed_roles", roles),
					slog.String("actual_role", string(p.Role)),
					slog.String("userID", p.UserID.String()))
				api.ErrorResponse(w, r, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
