package pricehistory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/asset"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ PriceService = (*PriceServiceImpl)(nil)

type PriceService interface {
	// RecordPrice stores an observation and advances the asset's last price when it is the newest.
	RecordPrice(ctx context.Context, req types.PriceHistoryRequest) (types.PriceHistory, error)
	ListPrices(ctx context.Context, assetID uuid.UUID, page types.PageRequest) (types.PagedResult[types.PriceHistory], error)
	LatestPrice(ctx context.Context, assetID uuid.UUID) (types.PriceHistory, error)
	DeletePrice(ctx context.Context, id uuid.UUID) error
}

// AssetCache drops stale copies of an asset after its quote moves.
type AssetCache interface {
	Invalidate(a types.Asset)
}

type PriceServiceImpl struct {
	logger *slog.Logger
	pool   database.Pool
	repo   PriceRepo
	assets asset.AssetRepo
	cache  AssetCache
}

func NewPriceService(repo PriceRepo, assets asset.AssetRepo, cache AssetCache, pool database.Pool, logger *slog.Logger) *PriceServiceImpl {
	return &PriceServiceImpl{
		logger: logger,
		pool:   pool,
		repo:   repo,
		assets: assets,
		cache:  cache,
	}
}

func (s *PriceServiceImpl) RecordPrice(ctx context.Context, req types.PriceHistoryRequest) (types.PriceHistory, error) {
	ctx, span := otel.Tracer("PriceService").Start(ctx, "RecordPrice", trace.WithAttributes(attribute.String("asset.id", req.AssetID.String())))
	defer span.End()

	l := s.logger.With(slog.String("method", "RecordPrice"), slog.String("assetID", req.AssetID.String()))

	p := req.ToPriceHistory()
	switch {
	case p.AssetID == uuid.Nil:
		return types.PriceHistory{}, api.BadRequest("asset_id is required")
	case p.RecordedAt.IsZero():
		return types.PriceHistory{}, api.BadRequest("recorded_at is required")
	case !p.Price.IsPositive():
		return types.PriceHistory{}, api.BadRequest("Price must be greater than zero")
	case !types.PriceFits(p.Price):
		return types.PriceHistory{}, api.BadRequest("Price must be below 1e%d with at most %d decimal places", types.PriceIntDigits, types.PriceScale)
	}

	var (
		stored   types.PriceHistory
		owner    types.Asset
		advanced bool
	)
	err := database.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		assets := s.assets.WithTx(tx)
		var err error
		if owner, err = assets.GetByID(ctx, p.AssetID); err != nil {
			return err
		}
		if stored, err = s.repo.WithTx(tx).Insert(ctx, p); err != nil {
			return err
		}
		advanced, err = assets.UpdateLastPrice(ctx, p.AssetID, stored.Price, stored.RecordedAt)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Record failed")
		return types.PriceHistory{}, err
	}

	if advanced {
		s.cache.Invalidate(owner)
	}
	l.DebugContext(ctx, "Price recorded", slog.String("price", stored.Price.String()), slog.Bool("advanced", advanced))
	span.SetAttributes(attribute.Bool("asset.last_price_advanced", advanced))
	span.SetStatus(codes.Ok, "")
	return stored, nil
}

func (s *PriceServiceImpl) ListPrices(ctx context.Context, assetID uuid.UUID, page types.PageRequest) (types.PagedResult[types.PriceHistory], error) {
	ctx, span := otel.Tracer("PriceService").Start(ctx, "ListPrices")
	defer span.End()

	exists, err := s.assets.Exists(ctx, assetID)
	if err != nil {
		return types.PagedResult[types.PriceHistory]{}, err
	}
	if !exists {
		return types.PagedResult[types.PriceHistory]{}, api.NotFound("Asset not found")
	}
	return s.repo.ListForAsset(ctx, assetID, page)
}

func (s *PriceServiceImpl) LatestPrice(ctx context.Context, assetID uuid.UUID) (types.PriceHistory, error) {
	ctx, span := otel.Tracer("PriceService").Start(ctx, "LatestPrice")
	defer span.End()
	return s.repo.Latest(ctx, assetID)
}

// DeletePrice removes a single observation. The asset's last price is left as is.
func (s *PriceServiceImpl) DeletePrice(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("PriceService").Start(ctx, "DeletePrice")
	defer span.End()

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}
	if !ok {
		return api.NotFound("Price record not found")
	}
	return nil
}
