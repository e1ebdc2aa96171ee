package pricehistory

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

type PriceHandler struct {
	priceService PriceService
	logger       *slog.Logger
}

func NewPriceHandler(priceService PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
		logger:       logger,
	}
}

func (h *PriceHandler) RecordPrice(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PriceHandler").Start(r.Context(), "RecordPrice")
	defer span.End()

	var req types.PriceHistoryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	p, err := h.priceService.RecordPrice(ctx, req)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PriceHandler").Start(r.Context(), "ListPrices")
	defer span.End()

	assetID, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	page, err := api.PageFromQuery(r)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	result, err := h.priceService.ListPrices(ctx, assetID, page)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *PriceHandler) LatestPrice(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PriceHandler").Start(r.Context(), "LatestPrice")
	defer span.End()

	assetID, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	p, err := h.priceService.LatestPrice(ctx, assetID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

func (h *PriceHandler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PriceHandler").Start(r.Context(), "DeletePrice")
	defer span.End()

	id, err := api.PathUUID(r, "priceID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	if err := h.priceService.DeletePrice(ctx, id); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
