package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ AssetRepo = (*PostgresAssetRepo)(nil)

type AssetRepo interface {
	WithTx(tx database.DBTX) AssetRepo

	// CreateIfAbsent inserts a unless its ticker is taken; the stored asset is
	// returned either way and created reports which case happened.
	CreateIfAbsent(ctx context.Context, a types.Asset) (types.Asset, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.Asset, error)
	GetByTicker(ctx context.Context, ticker string) (types.Asset, error)
	GetByExternalID(ctx context.Context, externalID string) (types.Asset, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, a types.Asset) (types.Asset, error)
	// UpdateLastPrice moves the cached quote forward; older observations are ignored.
	UpdateLastPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Search(ctx context.Context, query string, page types.PageRequest) (types.PagedResult[types.Asset], error)
}

const assetColumns = "id, ticker_symbol, name, type, external_id, source, currency, last_price, last_price_at, created_at, updated_at"

func assetFields(a *types.Asset) []any {
	return []any{&a.ID, &a.TickerSymbol, &a.Name, &a.Type, &a.ExternalID, &a.Source, &a.Currency, &a.LastPrice, &a.LastPriceAt, &a.CreatedAt, &a.UpdatedAt}
}

type PostgresAssetRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresAssetRepo(db database.DBTX, logger *slog.Logger) *PostgresAssetRepo {
	return &PostgresAssetRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresAssetRepo) WithTx(tx database.DBTX) AssetRepo {
	return &PostgresAssetRepo{logger: r.logger, db: tx}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "assets"))
	return otel.Tracer("AssetRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresAssetRepo) getOne(ctx context.Context, query string, arg any) (types.Asset, error) {
	var a types.Asset
	err := r.db.QueryRow(ctx, query, arg).Scan(assetFields(&a)...)
	return a, err
}

func (r *PostgresAssetRepo) CreateIfAbsent(ctx context.Context, a types.Asset) (types.Asset, bool, error) {
	ctx, span := startSpan(ctx, "CreateIfAbsent", attribute.String("asset.ticker", a.TickerSymbol))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateIfAbsent"), slog.String("ticker", a.TickerSymbol))

	insert := func(ctx context.Context) (types.Asset, error) {
		var created types.Asset
		err := r.db.QueryRow(ctx, `
			INSERT INTO assets (ticker_symbol, name, type, external_id, source, currency)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ticker_symbol) DO NOTHING
			RETURNING `+assetColumns,
			a.TickerSymbol, a.Name, string(a.Type), a.ExternalID, a.Source, a.Currency,
		).Scan(assetFields(&created)...)
		return created, err
	}
	refetch := func(ctx context.Context) (types.Asset, error) {
		return r.getOne(ctx, "SELECT "+assetColumns+" FROM assets WHERE ticker_symbol = $1", a.TickerSymbol)
	}

	asset, created, err := database.CreateIfAbsent(ctx, insert, refetch)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create asset", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return types.Asset{}, false, fmt.Errorf("database error creating asset: %w", err)
	}

	span.SetAttributes(attribute.Bool("asset.created", created))
	if created {
		l.InfoContext(ctx, "Asset inserted", slog.String("assetID", asset.ID.String()))
	}
	span.SetStatus(codes.Ok, "")
	return asset, created, nil
}

func (r *PostgresAssetRepo) lookup(ctx context.Context, method, query string, arg any) (types.Asset, error) {
	ctx, span := startSpan(ctx, method)
	defer span.End()

	a, err := r.getOne(ctx, query, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Asset not found")
			return types.Asset{}, api.NotFound("Asset not found")
		}
		r.logger.ErrorContext(ctx, "Failed to fetch asset", slog.String("method", method), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.Asset{}, fmt.Errorf("database error fetching asset: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return a, nil
}

func (r *PostgresAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (types.Asset, error) {
	return r.lookup(ctx, "GetByID", "SELECT "+assetColumns+" FROM assets WHERE id = $1", id)
}

func (r *PostgresAssetRepo) GetByTicker(ctx context.Context, ticker string) (types.Asset, error) {
	return r.lookup(ctx, "GetByTicker", "SELECT "+assetColumns+" FROM assets WHERE ticker_symbol = $1", ticker)
}

func (r *PostgresAssetRepo) GetByExternalID(ctx context.Context, externalID string) (types.Asset, error) {
	return r.lookup(ctx, "GetByExternalID", "SELECT "+assetColumns+" FROM assets WHERE external_id = $1 ORDER BY created_at LIMIT 1", externalID)
}

func (r *PostgresAssetRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Exists", attribute.String("asset.id", id.String()))
	defer span.End()

	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM assets WHERE id = $1)", id).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking asset: %w", err)
	}
	return exists, nil
}

func (r *PostgresAssetRepo) Update(ctx context.Context, a types.Asset) (types.Asset, error) {
	ctx, span := startSpan(ctx, "Update", attribute.String("asset.id", a.ID.String()))
	defer span.End()

	var updated types.Asset
	err := r.db.QueryRow(ctx, `
		UPDATE assets
		SET name = $2, type = $3, external_id = $4, source = $5, currency = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+assetColumns,
		a.ID, a.Name, string(a.Type), a.ExternalID, a.Source, a.Currency,
	).Scan(assetFields(&updated)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Asset not found")
			return types.Asset{}, api.NotFound("Asset not found")
		}
		r.logger.ErrorContext(ctx, "Failed to update asset", slog.String("assetID", a.ID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return types.Asset{}, fmt.Errorf("database error updating asset: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

func (r *PostgresAssetRepo) UpdateLastPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	ctx, span := startSpan(ctx, "UpdateLastPrice", attribute.String("asset.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, `
		UPDATE assets SET last_price = $2, last_price_at = $3, updated_at = NOW()
		WHERE id = $1 AND (last_price_at IS NULL OR last_price_at <= $3)`,
		id, price, at,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update last price", slog.String("assetID", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return false, fmt.Errorf("database error updating last price: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresAssetRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Delete", attribute.String("asset.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, "DELETE FROM assets WHERE id = $1", id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete asset", slog.String("assetID", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return false, fmt.Errorf("database error deleting asset: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *PostgresAssetRepo) Search(ctx context.Context, query string, page types.PageRequest) (types.PagedResult[types.Asset], error) {
	ctx, span := startSpan(ctx, "Search", attribute.String("search.query", query))
	defer span.End()

	q := database.PageQuery{
		Columns: assetColumns,
		From:    "assets",
		OrderBy: "ticker_symbol ASC",
	}
	if query = strings.TrimSpace(query); query != "" {
		q.From = "assets WHERE ticker_symbol ILIKE $1 OR name ILIKE $1"
		q.Args = []any{"%" + likeEscaper.Replace(query) + "%"}
	}

	result, err := database.QueryPage(ctx, r.db, q, page, assetFields)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to search assets", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PagedResult[types.Asset]{}, fmt.Errorf("database error searching assets: %w", err)
	}
	span.SetAttributes(attribute.Int64("result.total", result.Total))
	span.SetStatus(codes.Ok, "")
	return result, nil
}
