package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		AuthService: authService,
	}
}

// RequireUserID returns the caller's id or writes a 401.
func RequireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok || userID == uuid.Nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// Register creates a USER account and returns it together with an access token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.HandleError(w, r, l, err)
		return
	}

	resp, err := h.AuthService.RegisterAndLogin(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.HandleError(w, r, l, err)
		return
	}

	span.SetStatus(codes.Ok, "User registered")
	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "RegisterAdmin")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RegisterAdmin"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	user, err := h.AuthService.RegisterAdmin(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.HandleError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	token, err := h.AuthService.Login(ctx, req.Login, req.Password)
	if err != nil {
		span.SetStatus(codes.Error, "Login failed")
		api.HandleError(w, r, l, err)
		return
	}

	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, token)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Me")
	defer span.End()

	userID, ok := RequireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.AuthService.Me(ctx, userID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) ChangeLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "ChangeLogin")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ChangeLogin"))

	userID, ok := RequireUserID(w, r)
	if !ok {
		return
	}

	var req types.ChangeLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	user, err := h.AuthService.ChangeLogin(ctx, userID, req.NewLogin, req.CurrentPassword)
	if err != nil {
		span.SetStatus(codes.Error, "Change login failed")
		api.HandleError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "ChangePassword")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ChangePassword"))

	userID, ok := RequireUserID(w, r)
	if !ok {
		return
	}

	var req types.ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, l, err)
		return
	}

	if err := h.AuthService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		span.SetStatus(codes.Error, "Change password failed")
		api.HandleError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
