package pricehistory

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

var _ PriceRepo = (*PostgresPriceRepo)(nil)

type PriceRepo interface {
	WithTx(tx database.DBTX) PriceRepo
	Insert(ctx context.Context, p types.PriceHistory) (types.PriceHistory, error)
	ListForAsset(ctx context.Context, assetID uuid.UUID, page types.PageRequest) (types.PagedResult[types.PriceHistory], error)
	Latest(ctx context.Context, assetID uuid.UUID) (types.PriceHistory, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

const priceColumns = "id, asset_id, recorded_at, price, source"

func priceFields(p *types.PriceHistory) []any {
	return []any{&p.ID, &p.AssetID, &p.RecordedAt, &p.Price, &p.Source}
}

type PostgresPriceRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresPriceRepo(db database.DBTX, logger *slog.Logger) *PostgresPriceRepo {
	return &PostgresPriceRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresPriceRepo) WithTx(tx database.DBTX) PriceRepo {
	return &PostgresPriceRepo{logger: r.logger, db: tx}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "price_history"))
	return otel.Tracer("PriceRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresPriceRepo) Insert(ctx context.Context, p types.PriceHistory) (types.PriceHistory, error) {
	ctx, span := startSpan(ctx, "Insert", attribute.String("asset.id", p.AssetID.String()))
	defer span.End()

	var stored types.PriceHistory
	err := r.db.QueryRow(ctx, `
		INSERT INTO price_history (asset_id, recorded_at, price, source)
		VALUES ($1, $2, $3, $4)
		RETURNING `+priceColumns,
		p.AssetID, p.RecordedAt, p.Price, p.Source,
	).Scan(priceFields(&stored)...)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			span.SetStatus(codes.Error, "Asset missing")
			return types.PriceHistory{}, api.NotFound("Asset not found")
		}
		if database.IsNumericOutOfRange(err) {
			span.SetStatus(codes.Error, "Price out of range")
			return types.PriceHistory{}, api.BadRequest("Price is out of range")
		}
		r.logger.ErrorContext(ctx, "Failed to insert price", slog.String("assetID", p.AssetID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return types.PriceHistory{}, fmt.Errorf("database error inserting price: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return stored, nil
}

func (r *PostgresPriceRepo) ListForAsset(ctx context.Context, assetID uuid.UUID, page types.PageRequest) (types.PagedResult[types.PriceHistory], error) {
	ctx, span := startSpan(ctx, "ListForAsset", attribute.String("asset.id", assetID.String()))
	defer span.End()

	result, err := database.QueryPage(ctx, r.db, database.PageQuery{
		Columns: priceColumns,
		From:    "price_history WHERE asset_id = $1",
		OrderBy: "recorded_at DESC, id DESC",
		Args:    []any{assetID},
	}, page, priceFields)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list prices", slog.String("assetID", assetID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PagedResult[types.PriceHistory]{}, fmt.Errorf("database error listing prices: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (r *PostgresPriceRepo) Latest(ctx context.Context, assetID uuid.UUID) (types.PriceHistory, error) {
	ctx, span := startSpan(ctx, "Latest", attribute.String("asset.id", assetID.String()))
	defer span.End()

	var p types.PriceHistory
	err := r.db.QueryRow(ctx,
		"SELECT "+priceColumns+" FROM price_history WHERE asset_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1",
		assetID,
	).Scan(priceFields(&p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "No prices")
			return types.PriceHistory{}, api.NotFound("No price recorded for asset")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PriceHistory{}, fmt.Errorf("database error fetching latest price: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return p, nil
}

func (r *PostgresPriceRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Delete", attribute.String("price.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, "DELETE FROM price_history WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return false, fmt.Errorf("database error deleting price: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
