package favourite

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

// FavouriteHandler always acts on the caller's own favourites.
type FavouriteHandler struct {
	favouriteService FavouriteService
	logger           *slog.Logger
}

func NewFavouriteHandler(favouriteService FavouriteService, logger *slog.Logger) *FavouriteHandler {
	return &FavouriteHandler{
		favouriteService: favouriteService,
		logger:           logger,
	}
}

func (h *FavouriteHandler) AddFavourite(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FavouriteHandler").Start(r.Context(), "AddFavourite")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	var req types.AddFavouriteRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}

	fav, created, err := h.favouriteService.AddFavourite(ctx, userID, req.AssetID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	api.WriteJSONResponse(w, r, status, fav)
}

func (h *FavouriteHandler) ListFavourites(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FavouriteHandler").Start(r.Context(), "ListFavourites")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	page, err := api.PageFromQuery(r)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	result, err := h.favouriteService.ListFavourites(ctx, userID, page)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *FavouriteHandler) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FavouriteHandler").Start(r.Context(), "RemoveFavourite")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	assetID, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	if err := h.favouriteService.RemoveFavourite(ctx, userID, assetID); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *FavouriteHandler) FavouriteStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FavouriteHandler").Start(r.Context(), "FavouriteStatus")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	assetID, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	fav, err := h.favouriteService.IsFavourite(ctx, userID, assetID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.FavouriteStatus{AssetID: assetID, IsFavourite: fav})
}
