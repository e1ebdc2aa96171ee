package asset

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ AssetService = (*AssetServiceImpl)(nil)

type AssetService interface {
	// CreateAsset is idempotent on the ticker symbol. created is false when
	// an asset with the same ticker already existed and was returned as-is.
	CreateAsset(ctx context.Context, req types.AssetRequest) (asset types.Asset, created bool, err error)
	GetAsset(ctx context.Context, id uuid.UUID) (types.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (types.Asset, error)
	UpdateAsset(ctx context.Context, id uuid.UUID, req types.AssetRequest) (types.Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
	SearchAssets(ctx context.Context, query string, page types.PageRequest) (types.PagedResult[types.Asset], error)
	// Invalidate drops any cached copy of the asset.
	Invalidate(a types.Asset)
}

type AssetServiceImpl struct {
	logger *slog.Logger
	repo   AssetRepo
	cache  *cache.Cache
}

func NewAssetService(repo AssetRepo, c *cache.Cache, logger *slog.Logger) *AssetServiceImpl {
	return &AssetServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  c,
	}
}

func idKey(id uuid.UUID) string     { return "asset:id:" + id.String() }
func tickerKey(ticker string) string { return "asset:ticker:" + ticker }

func (s *AssetServiceImpl) remember(a types.Asset) {
	s.cache.Set(idKey(a.ID), a, cache.DefaultExpiration)
	s.cache.Set(tickerKey(a.TickerSymbol), a, cache.DefaultExpiration)
}

func (s *AssetServiceImpl) Invalidate(a types.Asset) {
	s.cache.Delete(idKey(a.ID))
	if a.TickerSymbol != "" {
		s.cache.Delete(tickerKey(a.TickerSymbol))
	}
}

func (s *AssetServiceImpl) candidate(req types.AssetRequest) (types.Asset, error) {
	t, ok := types.ParseAssetType(req.Type)
	if !ok {
		return types.Asset{}, api.BadRequest("Invalid asset type: %s", req.Type)
	}
	a := req.ToAsset(t)
	if a.TickerSymbol == "" {
		return types.Asset{}, api.BadRequest("Ticker symbol must not be blank")
	}
	if a.Name == "" {
		return types.Asset{}, api.BadRequest("Name must not be blank")
	}
	return a, nil
}

// checkExternalID rejects an external id already owned by an asset other than self.
func (s *AssetServiceImpl) checkExternalID(ctx context.Context, externalID *string, self func(types.Asset) bool) error {
	if externalID == nil {
		return nil
	}
	owner, err := s.repo.GetByExternalID(ctx, *externalID)
	switch {
	case errors.Is(err, api.ErrNotFound):
		return nil
	case err != nil:
		return err
	case self(owner):
		return nil
	default:
		return api.AlreadyExists("External id %s is already used by asset %s", *externalID, owner.TickerSymbol)
	}
}

func (s *AssetServiceImpl) CreateAsset(ctx context.Context, req types.AssetRequest) (types.Asset, bool, error) {
	ctx, span := otel.Tracer("AssetService").Start(ctx, "CreateAsset")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateAsset"))

	a, err := s.candidate(req)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid request")
		return types.Asset{}, false, err
	}
	span.SetAttributes(attribute.String("asset.ticker", a.TickerSymbol))

	sameTicker := func(o types.Asset) bool { return o.TickerSymbol == a.TickerSymbol }
	if err := s.checkExternalID(ctx, a.ExternalID, sameTicker); err != nil {
		span.SetStatus(codes.Error, "External id check failed")
		return types.Asset{}, false, err
	}

	stored, created, err := s.repo.CreateIfAbsent(ctx, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return types.Asset{}, false, err
	}

	if created {
		l.InfoContext(ctx, "Asset created", slog.String("ticker", stored.TickerSymbol), slog.String("assetID", stored.ID.String()))
	} else {
		l.DebugContext(ctx, "Asset already existed", slog.String("ticker", stored.TickerSymbol))
	}
	s.remember(stored)
	span.SetStatus(codes.Ok, "")
	return stored, created, nil
}

func (s *AssetServiceImpl) GetAsset(ctx context.Context, id uuid.UUID) (types.Asset, error) {
	ctx, span := otel.Tracer("AssetService").Start(ctx, "GetAsset", trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	if cached, found := s.cache.Get(idKey(id)); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.(types.Asset), nil
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch failed")
		return types.Asset{}, err
	}
	s.remember(a)
	return a, nil
}

func (s *AssetServiceImpl) GetAssetByTicker(ctx context.Context, ticker string) (types.Asset, error) {
	ticker = types.NormalizeTicker(ticker)
	ctx, span := otel.Tracer("AssetService").Start(ctx, "GetAssetByTicker", trace.WithAttributes(attribute.String("asset.ticker", ticker)))
	defer span.End()

	if ticker == "" {
		return types.Asset{}, api.BadRequest("Ticker symbol must not be blank")
	}
	if cached, found := s.cache.Get(tickerKey(ticker)); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.(types.Asset), nil
	}

	a, err := s.repo.GetByTicker(ctx, ticker)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch failed")
		return types.Asset{}, err
	}
	s.remember(a)
	return a, nil
}

func (s *AssetServiceImpl) UpdateAsset(ctx context.Context, id uuid.UUID, req types.AssetRequest) (types.Asset, error) {
	ctx, span := otel.Tracer("AssetService").Start(ctx, "UpdateAsset", trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateAsset"), slog.String("assetID", id.String()))

	a, err := s.candidate(req)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid request")
		return types.Asset{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch failed")
		return types.Asset{}, err
	}
	if current.TickerSymbol != a.TickerSymbol {
		span.SetStatus(codes.Error, "Ticker change rejected")
		return types.Asset{}, api.BadRequest("Ticker symbol cannot be changed")
	}

	sameID := func(o types.Asset) bool { return o.ID == id }
	if err := s.checkExternalID(ctx, a.ExternalID, sameID); err != nil {
		span.SetStatus(codes.Error, "External id check failed")
		return types.Asset{}, err
	}

	a.ID = id
	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return types.Asset{}, err
	}

	s.Invalidate(current)
	l.InfoContext(ctx, "Asset updated")
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

func (s *AssetServiceImpl) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("AssetService").Start(ctx, "DeleteAsset", trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	// read first so the ticker entry can be evicted too
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "Fetch failed")
		return err
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}
	s.Invalidate(current)
	if !ok {
		return api.NotFound("Asset not found")
	}

	s.logger.InfoContext(ctx, "Asset deleted", slog.String("method", "DeleteAsset"), slog.String("ticker", current.TickerSymbol))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AssetServiceImpl) SearchAssets(ctx context.Context, query string, page types.PageRequest) (types.PagedResult[types.Asset], error) {
	ctx, span := otel.Tracer("AssetService").Start(ctx, "SearchAssets")
	defer span.End()

	result, err := s.repo.Search(ctx, query, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return types.PagedResult[types.Asset]{}, err
	}
	return result, nil
}
