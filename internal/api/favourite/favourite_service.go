package favourite

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ FavouriteService = (*FavouriteServiceImpl)(nil)

type FavouriteService interface {
	AddFavourite(ctx context.Context, userID, assetID uuid.UUID) (types.Favourite, bool, error)
	ListFavourites(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.Favourite], error)
	RemoveFavourite(ctx context.Context, userID, assetID uuid.UUID) error
	IsFavourite(ctx context.Context, userID, assetID uuid.UUID) (bool, error)
}

// Existence is satisfied by the user and asset repositories.
type Existence interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type FavouriteServiceImpl struct {
	logger *slog.Logger
	repo   FavouriteRepo
	users  Existence
	assets Existence
}

func NewFavouriteService(repo FavouriteRepo, users, assets Existence, logger *slog.Logger) *FavouriteServiceImpl {
	return &FavouriteServiceImpl{
		logger: logger,
		repo:   repo,
		users:  users,
		assets: assets,
	}
}

func mustExist(ctx context.Context, e Existence, id uuid.UUID, what string) error {
	ok, err := e.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return api.NotFound("%s not found", what)
	}
	return nil
}

func (s *FavouriteServiceImpl) AddFavourite(ctx context.Context, userID, assetID uuid.UUID) (types.Favourite, bool, error) {
	ctx, span := otel.Tracer("FavouriteService").Start(ctx, "AddFavourite", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("asset.id", assetID.String()),
	))
	defer span.End()

	if assetID == uuid.Nil {
		return types.Favourite{}, false, api.BadRequest("asset_id is required")
	}
	if err := mustExist(ctx, s.users, userID, "User"); err != nil {
		span.SetStatus(codes.Error, "User check failed")
		return types.Favourite{}, false, err
	}
	if err := mustExist(ctx, s.assets, assetID, "Asset"); err != nil {
		span.SetStatus(codes.Error, "Asset check failed")
		return types.Favourite{}, false, err
	}

	fav, created, err := s.repo.CreateIfAbsent(ctx, userID, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Add failed")
		return types.Favourite{}, false, err
	}
	if created {
		s.logger.InfoContext(ctx, "Favourite added", slog.String("userID", userID.String()), slog.String("assetID", assetID.String()))
	}
	span.SetStatus(codes.Ok, "")
	return fav, created, nil
}

func (s *FavouriteServiceImpl) ListFavourites(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.Favourite], error) {
	ctx, span := otel.Tracer("FavouriteService").Start(ctx, "ListFavourites")
	defer span.End()
	return s.repo.ListForUser(ctx, userID, page)
}

func (s *FavouriteServiceImpl) RemoveFavourite(ctx context.Context, userID, assetID uuid.UUID) error {
	ctx, span := otel.Tracer("FavouriteService").Start(ctx, "RemoveFavourite")
	defer span.End()

	ok, err := s.repo.Delete(ctx, userID, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Remove failed")
		return err
	}
	if !ok {
		return api.NotFound("Favourite not found")
	}
	return nil
}

func (s *FavouriteServiceImpl) IsFavourite(ctx context.Context, userID, assetID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("FavouriteService").Start(ctx, "IsFavourite")
	defer span.End()
	return s.repo.Exists(ctx, userID, assetID)
}
