package notificationrule

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

type RuleHandler struct {
	ruleService RuleService
	logger      *slog.Logger
}

func NewRuleHandler(ruleService RuleService, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
		logger:      logger,
	}
}

func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "CreateRule")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	var req types.CreateNotificationRuleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	rule, err := h.ruleService.CreateRule(ctx, userID, req)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, rule)
}

func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "ListRules")
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
	result, err := h.ruleService.ListRules(ctx, userID, page)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "GetRule")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	ruleID, err := api.PathUUID(r, "ruleID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	rule, err := h.ruleService.GetRule(ctx, userID, ruleID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rule)
}

func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "UpdateRule")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	ruleID, err := api.PathUUID(r, "ruleID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	var req types.UpdateNotificationRuleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	rule, err := h.ruleService.UpdateRule(ctx, userID, ruleID, req)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rule)
}

func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "DeleteRule")
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	ruleID, err := api.PathUUID(r, "ruleID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	if err := h.ruleService.DeleteRule(ctx, userID, ruleID); err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// EnabledRulesForAsset serves the external evaluator.
func (h *RuleHandler) EnabledRulesForAsset(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RuleHandler").Start(r.Context(), "EnabledRulesForAsset")
	defer span.End()

	assetID, err := api.PathUUID(r, "assetID")
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	rules, err := h.ruleService.FindEnabledByAsset(ctx, assetID)
	if err != nil {
		api.HandleError(w, r, h.logger, err)
		return
	}
	if rules == nil {
		rules = []types.NotificationRule{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, rules)
}
