package user

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

// UserHandler serves /users/me and the /admin/users endpoints.
type UserHandler struct {
	userService UserService
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "UpdateMyProfile")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}

	var req types.UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}

	u, err := h.userService.UpdateProfile(ctx, userID, req)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "ListUsers")
	defer span.End()

	page, err := api.PageFromQuery(r)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))

	result, err := h.userService.ListUsers(ctx, includeDeleted, page)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "GetUser")
	defer span.End()

	id, err := api.PathUUID(r, "userID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	u, err := h.userService.GetUser(ctx, id)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "UpdateUser")
	defer span.End()

	id, err := api.PathUUID(r, "userID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	var req types.UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	u, err := h.userService.UpdateProfile(ctx, id, req)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// userAction runs a state change addressed by the {userID} path parameter and answers 204.
func (h *UserHandler) userAction(name string, fn func(ctx context.Context, id uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("UserHandler").Start(r.Context(), name)
		defer span.End()
		l := h.logger.With(slog.String("handler", name))

		id, err := api.PathUUID(r, "userID")
		if err != nil {
			api.HandleError(w, r, l, err)
			return
		}
		if err := fn(ctx, id); err != nil {
			span.SetStatus(codes.Error, name+" failed")
			api.HandleError(w, r, l, err)
			return
		}
		api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
	}
}

func (h *UserHandler) SoftDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.userAction("SoftDeleteUser", h.userService.SoftDelete)(w, r)
}

func (h *UserHandler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	h.userAction("RestoreUser", h.userService.Restore)(w, r)
}

func (h *UserHandler) HardDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.userAction("HardDeleteUser", h.userService.HardDelete)(w, r)
}
