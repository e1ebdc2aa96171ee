package notificationrule

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ RuleService = (*RuleServiceImpl)(nil)

type RuleService interface {
	CreateRule(ctx context.Context, userID uuid.UUID, req types.CreateNotificationRuleRequest) (types.NotificationRule, error)
	GetRule(ctx context.Context, userID, ruleID uuid.UUID) (types.NotificationRule, error)
	ListRules(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.NotificationRule], error)
	UpdateRule(ctx context.Context, userID, ruleID uuid.UUID, req types.UpdateNotificationRuleRequest) (types.NotificationRule, error)
	DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error
	// FindEnabledByAsset lists the rules an external evaluator should check for the asset.
	FindEnabledByAsset(ctx context.Context, assetID uuid.UUID) ([]types.NotificationRule, error)
}

type AssetExistence interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type RuleServiceImpl struct {
	logger *slog.Logger
	pool   database.Pool
	repo   RuleRepo
	assets AssetExistence
}

func NewRuleService(repo RuleRepo, assets AssetExistence, pool database.Pool, logger *slog.Logger) *RuleServiceImpl {
	return &RuleServiceImpl{
		logger: logger,
		pool:   pool,
		repo:   repo,
		assets: assets,
	}
}

func validTarget(p decimal.Decimal) error {
	if !p.IsPositive() {
		return api.BadRequest("Target price must be greater than zero")
	}
	if !types.PriceFits(p) {
		return api.BadRequest("Target price must be below 1e%d with at most %d decimal places", types.PriceIntDigits, types.PriceScale)
	}
	return nil
}

func parseDirection(raw string) (types.Direction, error) {
	d, ok := types.ParseDirection(raw)
	if !ok {
		return "", api.BadRequest("Direction must be ABOVE or BELOW")
	}
	return d, nil
}

func (s *RuleServiceImpl) assetMustExist(ctx context.Context, id uuid.UUID) error {
	ok, err := s.assets.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return api.NotFound("Asset not found")
	}
	return nil
}

func (s *RuleServiceImpl) CreateRule(ctx context.Context, userID uuid.UUID, req types.CreateNotificationRuleRequest) (types.NotificationRule, error) {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "CreateRule", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	if err := validTarget(req.TargetPrice); err != nil {
		return types.NotificationRule{}, err
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		return types.NotificationRule{}, err
	}
	if err := s.assetMustExist(ctx, req.AssetID); err != nil {
		span.SetStatus(codes.Error, "Asset check failed")
		return types.NotificationRule{}, err
	}

	rule := types.NotificationRule{
		UserID:      userID,
		AssetID:     req.AssetID,
		TargetPrice: req.TargetPrice,
		Direction:   dir,
		Enabled:     true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.RepeatNotification != nil {
		rule.RepeatNotification = *req.RepeatNotification
	}

	stored, err := s.repo.Insert(ctx, rule)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return types.NotificationRule{}, err
	}
	s.logger.InfoContext(ctx, "Notification rule created",
		slog.String("ruleID", stored.ID.String()),
		slog.String("assetID", stored.AssetID.String()),
		slog.String("direction", string(stored.Direction)))
	span.SetStatus(codes.Ok, "")
	return stored, nil
}

func (s *RuleServiceImpl) GetRule(ctx context.Context, userID, ruleID uuid.UUID) (types.NotificationRule, error) {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "GetRule")
	defer span.End()
	return s.repo.Get(ctx, ruleID, userID)
}

func (s *RuleServiceImpl) ListRules(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.NotificationRule], error) {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "ListRules")
	defer span.End()
	return s.repo.ListForUser(ctx, userID, page)
}

func (s *RuleServiceImpl) UpdateRule(ctx context.Context, userID, ruleID uuid.UUID, req types.UpdateNotificationRuleRequest) (types.NotificationRule, error) {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "UpdateRule", trace.WithAttributes(attribute.String("rule.id", ruleID.String())))
	defer span.End()

	var dir *types.Direction
	if req.TargetPrice != nil {
		if err := validTarget(*req.TargetPrice); err != nil {
			return types.NotificationRule{}, err
		}
	}
	if req.Direction != nil {
		d, err := parseDirection(*req.Direction)
		if err != nil {
			return types.NotificationRule{}, err
		}
		dir = &d
	}

	var updated types.NotificationRule
	err := database.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		rule, err := repo.GetForUpdate(ctx, ruleID, userID)
		if err != nil {
			return err
		}

		if req.AssetID != nil && *req.AssetID != rule.AssetID {
			if err := s.assetMustExist(ctx, *req.AssetID); err != nil {
				return err
			}
			rule.AssetID = *req.AssetID
		}
		if req.TargetPrice != nil {
			rule.TargetPrice = *req.TargetPrice
		}
		if dir != nil {
			rule.Direction = *dir
		}
		if req.Enabled != nil {
			rule.Enabled = *req.Enabled
		}
		if req.RepeatNotification != nil {
			rule.RepeatNotification = *req.RepeatNotification
		}

		updated, err = repo.Update(ctx, rule)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return types.NotificationRule{}, err
	}
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

func (s *RuleServiceImpl) DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "DeleteRule")
	defer span.End()

	ok, err := s.repo.Delete(ctx, ruleID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}
	if !ok {
		return api.NotFound("Notification rule not found")
	}
	return nil
}

func (s *RuleServiceImpl) FindEnabledByAsset(ctx context.Context, assetID uuid.UUID) ([]types.NotificationRule, error) {
	ctx, span := otel.Tracer("RuleService").Start(ctx, "FindEnabledByAsset")
	defer span.End()
	return s.repo.FindEnabledByAsset(ctx, assetID)
}
