package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// principalEcho reports whether a principal reached the handler.
func principalEcho(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": p.UserID.String(), "role": string(p.Role)})
	})
}

func TestAuthenticate(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokenService(t, clock)
	userID := uuid.New()
	issued, err := tokens.Issue(userID, types.RoleUser)
	require.NoError(t, err)

	gate := Authenticate(discardLogger(), tokens)

	t.Run("no header passes through anonymously", func(t *testing.T) {
		called := false
		rr := httptest.NewRecorder()
		gate(principalEcho(&called)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil))

		assert.True(t, called)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("non-bearer scheme is anonymous", func(t *testing.T) {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()
		gate(principalEcho(&called)).ServeHTTP(rr, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("valid token installs principal", func(t *testing.T) {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/api/v1/assets", nil)
		req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
		rr := httptest.NewRecorder()
		gate(principalEcho(&called)).ServeHTTP(rr, req)

		require.True(t, called)
		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, "USER", body["role"])
	})

	t.Run("invalid token short-circuits with 401 body", func(t *testing.T) {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/api/v1/favourites", nil)
		req.Header.Set("Authorization", "Bearer "+issued.AccessToken+"x")
		rr := httptest.NewRecorder()
		gate(principalEcho(&called)).ServeHTTP(rr, req)

		assert.False(t, called)
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		var body api.ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, 401, body.Status)
		assert.Equal(t, "Unauthorized", body.Error)
		assert.Equal(t, "Invalid or expired token", body.Message)
		assert.Equal(t, "/api/v1/favourites", body.Path)
		assert.False(t, body.Timestamp.IsZero())
	})

	t.Run("expired token gives the same message", func(t *testing.T) {
		old := &fakeClock{t: time.Now().Add(-3 * time.Hour)}
		expired, err := newTestTokenService(t, old).Issue(userID, types.RoleUser)
		require.NoError(t, err)

		called := false
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+expired.AccessToken)
		rr := httptest.NewRecorder()
		gate(principalEcho(&called)).ServeHTTP(rr, req)

		assert.False(t, called)
		var body api.ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "Invalid or expired token", body.Message)
	})
}

func TestRequireAuthenticationAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	logger := discardLogger()

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireAuthentication(logger)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("user on admin route is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), types.Principal{UserID: uuid.New(), Role: types.RoleUser}))
		rr := httptest.NewRecorder()
		RequireRole(logger, types.RoleAdmin)(ok).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), types.Principal{UserID: uuid.New(), Role: types.RoleAdmin}))
		rr := httptest.NewRecorder()
		RequireRole(logger, types.RoleAdmin)(ok).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
