package notificationrule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ RuleRepo = (*PostgresRuleRepo)(nil)

// RuleRepo persists notification rules. Every per-rule lookup is scoped to
// the owning user, so another user's rule reads as api.ErrNotFound.
type RuleRepo interface {
	WithTx(tx database.DBTX) RuleRepo
	Insert(ctx context.Context, rule types.NotificationRule) (types.NotificationRule, error)
	Get(ctx context.Context, id, userID uuid.UUID) (types.NotificationRule, error)
	GetForUpdate(ctx context.Context, id, userID uuid.UUID) (types.NotificationRule, error)
	Update(ctx context.Context, rule types.NotificationRule) (types.NotificationRule, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.NotificationRule], error)
	FindEnabledByAsset(ctx context.Context, assetID uuid.UUID) ([]types.NotificationRule, error)
}

const ruleColumns = "id, user_id, asset_id, target_price, direction, enabled, repeat_notification, last_triggered, created_at"

func ruleFields(r *types.NotificationRule) []any {
	return []any{&r.ID, &r.UserID, &r.AssetID, &r.TargetPrice, &r.Direction, &r.Enabled, &r.RepeatNotification, &r.LastTriggered, &r.CreatedAt}
}

type PostgresRuleRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresRuleRepo(db database.DBTX, logger *slog.Logger) *PostgresRuleRepo {
	return &PostgresRuleRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresRuleRepo) WithTx(tx database.DBTX) RuleRepo {
	return &PostgresRuleRepo{logger: r.logger, db: tx}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "notification_rules"))
	return otel.Tracer("RuleRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresRuleRepo) Insert(ctx context.Context, rule types.NotificationRule) (types.NotificationRule, error) {
	ctx, span := startSpan(ctx, "Insert", attribute.String("user.id", rule.UserID.String()))
	defer span.End()

	var stored types.NotificationRule
	err := r.db.QueryRow(ctx, `
		INSERT INTO notification_rules (user_id, asset_id, target_price, direction, enabled, repeat_notification)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+ruleColumns,
		rule.UserID, rule.AssetID, rule.TargetPrice, string(rule.Direction), rule.Enabled, rule.RepeatNotification,
	).Scan(ruleFields(&stored)...)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			span.SetStatus(codes.Error, "Dangling reference")
			return types.NotificationRule{}, api.NotFound("Asset not found")
		}
		if database.IsNumericOutOfRange(err) {
			span.SetStatus(codes.Error, "Target out of range")
			return types.NotificationRule{}, api.BadRequest("Target price is out of range")
		}
		r.logger.ErrorContext(ctx, "Failed to insert notification rule", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return types.NotificationRule{}, fmt.Errorf("database error inserting notification rule: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return stored, nil
}

func (r *PostgresRuleRepo) fetch(ctx context.Context, method, query string, id, userID uuid.UUID) (types.NotificationRule, error) {
	ctx, span := startSpan(ctx, method, attribute.String("rule.id", id.String()))
	defer span.End()

	var rule types.NotificationRule
	if err := r.db.QueryRow(ctx, query, id, userID).Scan(ruleFields(&rule)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Rule not found")
			return types.NotificationRule{}, api.NotFound("Notification rule not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.NotificationRule{}, fmt.Errorf("database error fetching notification rule: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return rule, nil
}

func (r *PostgresRuleRepo) Get(ctx context.Context, id, userID uuid.UUID) (types.NotificationRule, error) {
	return r.fetch(ctx, "Get", "SELECT "+ruleColumns+" FROM notification_rules WHERE id = $1 AND user_id = $2", id, userID)
}

func (r *PostgresRuleRepo) GetForUpdate(ctx context.Context, id, userID uuid.UUID) (types.NotificationRule, error) {
	return r.fetch(ctx, "GetForUpdate", "SELECT "+ruleColumns+" FROM notification_rules WHERE id = $1 AND user_id = $2 FOR UPDATE", id, userID)
}

func (r *PostgresRuleRepo) Update(ctx context.Context, rule types.NotificationRule) (types.NotificationRule, error) {
	ctx, span := startSpan(ctx, "Update", attribute.String("rule.id", rule.ID.String()))
	defer span.End()

	var stored types.NotificationRule
	err := r.db.QueryRow(ctx, `
		UPDATE notification_rules
		SET asset_id = $3, target_price = $4, direction = $5, enabled = $6, repeat_notification = $7
		WHERE id = $1 AND user_id = $2
		RETURNING `+ruleColumns,
		rule.ID, rule.UserID, rule.AssetID, rule.TargetPrice, string(rule.Direction), rule.Enabled, rule.RepeatNotification,
	).Scan(ruleFields(&stored)...)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			span.SetStatus(codes.Error, "Rule not found")
			return types.NotificationRule{}, api.NotFound("Notification rule not found")
		case database.IsForeignKeyViolation(err):
			span.SetStatus(codes.Error, "Dangling reference")
			return types.NotificationRule{}, api.NotFound("Asset not found")
		case database.IsNumericOutOfRange(err):
			span.SetStatus(codes.Error, "Target out of range")
			return types.NotificationRule{}, api.BadRequest("Target price is out of range")
		}
		r.logger.ErrorContext(ctx, "Failed to update notification rule", slog.String("ruleID", rule.ID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return types.NotificationRule{}, fmt.Errorf("database error updating notification rule: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return stored, nil
}

func (r *PostgresRuleRepo) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Delete", attribute.String("rule.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, "DELETE FROM notification_rules WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return false, fmt.Errorf("database error deleting notification rule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRuleRepo) ListForUser(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.NotificationRule], error) {
	ctx, span := startSpan(ctx, "ListForUser", attribute.String("user.id", userID.String()))
	defer span.End()

	result, err := database.QueryPage(ctx, r.db, database.PageQuery{
		Columns: ruleColumns,
		From:    "notification_rules WHERE user_id = $1",
		OrderBy: "created_at DESC, id DESC",
		Args:    []any{userID},
	}, page, ruleFields)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list notification rules", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PagedResult[types.NotificationRule]{}, fmt.Errorf("database error listing notification rules: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (r *PostgresRuleRepo) FindEnabledByAsset(ctx context.Context, assetID uuid.UUID) ([]types.NotificationRule, error) {
	ctx, span := startSpan(ctx, "FindEnabledByAsset", attribute.String("asset.id", assetID.String()))
	defer span.End()

	rows, err := r.db.Query(ctx,
		"SELECT "+ruleColumns+" FROM notification_rules WHERE asset_id = $1 AND enabled = TRUE ORDER BY created_at, id",
		assetID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error finding enabled rules: %w", err)
	}
	defer rows.Close()

	var rules []types.NotificationRule
	for rows.Next() {
		var rule types.NotificationRule
		if err := rows.Scan(ruleFields(&rule)...); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("database error scanning rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("database error iterating rules: %w", err)
	}
	span.SetAttributes(attribute.Int("rules.count", len(rules)))
	span.SetStatus(codes.Ok, "")
	return rules, nil
}
