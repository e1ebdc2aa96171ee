package asset

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

type AssetHandler struct {
	assetService AssetService
	logger       *slog.Logger
}

func NewAssetHandler(assetService AssetService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		logger:       logger,
	}
}

// CreateAsset answers 201 for a new asset and 200 when the ticker already existed.
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "CreateAsset")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateAsset"))

	var req types.AssetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.HandleError(w, r, l, err)
		return
	}

	a, created, err := h.assetService.CreateAsset(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, "Create failed")
		api.HandleError(w, r, l, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	span.SetAttributes(attribute.Bool("asset.created", created))
	api.WriteJSONResponse(w, r, status, a)
}

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "GetAsset")
	defer span.End()

	id, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	a, err := h.assetService.GetAsset(ctx, id)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, a)
}

func (h *AssetHandler) GetAssetByTicker(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "GetAssetByTicker")
	defer span.End()

	a, err := h.assetService.GetAssetByTicker(ctx, chi.URLParam(r, "ticker"))
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, a)
}

func (h *AssetHandler) SearchAssets(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "SearchAssets")
	defer span.End()

	page, err := api.PageFromQuery(r)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	result, err := h.assetService.SearchAssets(ctx, r.URL.Query().Get("q"), page)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "UpdateAsset")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateAsset"))

	id, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	var req types.AssetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, l, err)
		return
	}
	a, err := h.assetService.UpdateAsset(ctx, id, req)
	if err != nil {
		span.SetStatus(codes.Error, "Update failed")
		api.HandleError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, a)
}

func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AssetHandler").Start(r.Context(), "DeleteAsset")
	defer span.End()

	id, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	if err := h.assetService.DeleteAsset(ctx, id); err != nil {
		span.SetStatus(codes.Error, "Delete failed")
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
