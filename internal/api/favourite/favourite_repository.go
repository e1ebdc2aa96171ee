package favourite

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

var _ FavouriteRepo = (*PostgresFavouriteRepo)(nil)

type FavouriteRepo interface {
	// CreateIfAbsent links the user to the asset once; repeated calls return the existing link.
	CreateIfAbsent(ctx context.Context, userID, assetID uuid.UUID) (types.Favourite, bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.Favourite], error)
	Delete(ctx context.Context, userID, assetID uuid.UUID) (bool, error)
	Exists(ctx context.Context, userID, assetID uuid.UUID) (bool, error)
}

const favouriteColumns = "id, user_id, asset_id, created_at"

func favouriteFields(f *types.Favourite) []any {
	return []any{&f.ID, &f.UserID, &f.AssetID, &f.CreatedAt}
}

type PostgresFavouriteRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresFavouriteRepo(db database.DBTX, logger *slog.Logger) *PostgresFavouriteRepo {
	return &PostgresFavouriteRepo{
		logger: logger,
		db:     db,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "favourites"))
	return otel.Tracer("FavouriteRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresFavouriteRepo) CreateIfAbsent(ctx context.Context, userID, assetID uuid.UUID) (types.Favourite, bool, error) {
	ctx, span := startSpan(ctx, "CreateIfAbsent",
		attribute.String("user.id", userID.String()),
		attribute.String("asset.id", assetID.String()),
	)
	defer span.End()

	insert := func(ctx context.Context) (types.Favourite, error) {
		var f types.Favourite
		err := r.db.QueryRow(ctx, `
			INSERT INTO favourites (user_id, asset_id) VALUES ($1, $2)
			ON CONFLICT (user_id, asset_id) DO NOTHING
			RETURNING `+favouriteColumns,
			userID, assetID,
		).Scan(favouriteFields(&f)...)
		return f, err
	}
	refetch := func(ctx context.Context) (types.Favourite, error) {
		var f types.Favourite
		err := r.db.QueryRow(ctx,
			"SELECT "+favouriteColumns+" FROM favourites WHERE user_id = $1 AND asset_id = $2",
			userID, assetID,
		).Scan(favouriteFields(&f)...)
		return f, err
	}

	fav, created, err := database.CreateIfAbsent(ctx, insert, refetch)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			span.SetStatus(codes.Error, "Dangling reference")
			return types.Favourite{}, false, api.NotFound("User or asset not found")
		}
		r.logger.ErrorContext(ctx, "Failed to add favourite",
			slog.String("userID", userID.String()),
			slog.String("assetID", assetID.String()),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return types.Favourite{}, false, fmt.Errorf("database error adding favourite: %w", err)
	}
	span.SetAttributes(attribute.Bool("favourite.created", created))
	span.SetStatus(codes.Ok, "")
	return fav, created, nil
}

func (r *PostgresFavouriteRepo) ListForUser(ctx context.Context, userID uuid.UUID, page types.PageRequest) (types.PagedResult[types.Favourite], error) {
	ctx, span := startSpan(ctx, "ListForUser", attribute.String("user.id", userID.String()))
	defer span.End()

	result, err := database.QueryPage(ctx, r.db, database.PageQuery{
		Columns: favouriteColumns,
		From:    "favourites WHERE user_id = $1",
		OrderBy: "created_at DESC, id DESC",
		Args:    []any{userID},
	}, page, favouriteFields)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list favourites", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PagedResult[types.Favourite]{}, fmt.Errorf("database error listing favourites: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (r *PostgresFavouriteRepo) Delete(ctx context.Context, userID, assetID uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, "DELETE FROM favourites WHERE user_id = $1 AND asset_id = $2", userID, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return false, fmt.Errorf("database error removing favourite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresFavouriteRepo) Exists(ctx context.Context, userID, assetID uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Exists")
	defer span.End()

	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM favourites WHERE user_id = $1 AND asset_id = $2", userID, assetID).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking favourite: %w", err)
	}
	return true, nil
}
