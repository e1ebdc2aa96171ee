package favourite

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var favCols = []string{"id", "user_id", "asset_id", "created_at"}

type existsSet map[uuid.UUID]bool

func (s existsSet) Exists(_ context.Context, id uuid.UUID) (bool, error) { return s[id], nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc    *FavouriteServiceImpl
	mock   pgxmock.PgxPoolIface
	userID uuid.UUID
	asset  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	f := fixture{mock: mock, userID: uuid.New(), asset: uuid.New()}
	f.svc = NewFavouriteService(
		NewPostgresFavouriteRepo(mock, discardLogger()),
		existsSet{f.userID: true},
		existsSet{f.asset: true},
		discardLogger(),
	)
	return f
}

func TestFavouriteService_Add(t *testing.T) {
	t.Run("second add returns the first link", func(t *testing.T) {
		f := newFixture(t)
		favID := uuid.New()
		now := time.Now().UTC()

		f.mock.ExpectQuery(`INSERT INTO favourites`).WithArgs(f.userID, f.asset).
			WillReturnRows(pgxmock.NewRows(favCols).AddRow(favID, f.userID, f.asset, now))
		f.mock.ExpectQuery(`INSERT INTO favourites`).WithArgs(f.userID, f.asset).
			WillReturnRows(pgxmock.NewRows(favCols))
		f.mock.ExpectQuery(`FROM favourites WHERE user_id = \$1 AND asset_id = \$2`).WithArgs(f.userID, f.asset).
			WillReturnRows(pgxmock.NewRows(favCols).AddRow(favID, f.userID, f.asset, now))

		first, created, err := f.svc.AddFavourite(context.Background(), f.userID, f.asset)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := f.svc.AddFavourite(context.Background(), f.userID, f.asset)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown asset", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.AddFavourite(context.Background(), f.userID, uuid.New())
		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.EqualError(t, err, "Asset not found")
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.AddFavourite(context.Background(), uuid.New(), f.asset)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})

	t.Run("missing asset id", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.AddFavourite(context.Background(), f.userID, uuid.Nil)
		assert.ErrorIs(t, err, api.ErrBadRequest)
	})

	t.Run("asset deleted between check and insert", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectQuery(`INSERT INTO favourites`).WithArgs(f.userID, f.asset).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "favourites_asset_id_fkey"})

		_, _, err := f.svc.AddFavourite(context.Background(), f.userID, f.asset)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestFavouriteService_ListPages(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	// 25 favourites, newest first.
	all := make([]types.Favourite, 25)
	for i := range all {
		all[i] = types.Favourite{ID: uuid.New(), UserID: f.userID, AssetID: uuid.New(), CreatedAt: now.Add(-time.Duration(i) * time.Minute)}
	}

	tests := []struct {
		page     int
		from, to int
	}{
		{0, 0, 10},
		{1, 10, 20},
		{2, 20, 25},
	}
	seen := make(map[uuid.UUID]bool)
	for _, tt := range tests {
		rows := pgxmock.NewRows(append(append([]string{}, favCols...), "total_count"))
		for _, fav := range all[tt.from:tt.to] {
			rows.AddRow(fav.ID, fav.UserID, fav.AssetID, fav.CreatedAt, int64(len(all)))
		}
		f.mock.ExpectQuery(`FROM favourites WHERE user_id = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
			WithArgs(f.userID, 10, tt.from).
			WillReturnRows(rows)

		page, err := f.svc.ListFavourites(context.Background(), f.userID, types.NewPageRequest(tt.page, 10))
		require.NoError(t, err)
		assert.Equal(t, all[tt.from:tt.to], page.Items, "page %d", tt.page)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, tt.page, page.Page)
		assert.Equal(t, 10, page.Size)
		for _, fav := range page.Items {
			assert.False(t, seen[fav.ID], "favourite %s listed twice", fav.ID)
			seen[fav.ID] = true
		}
	}
	assert.Len(t, seen, len(all))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFavouriteService_PastTheEndKeepsTotal(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`FROM favourites WHERE user_id = \$1 ORDER BY`).
		WithArgs(f.userID, 10, 30).
		WillReturnRows(pgxmock.NewRows(append(append([]string{}, favCols...), "total_count")))
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM favourites WHERE user_id = \$1`).
		WithArgs(f.userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(25)))

	page, err := f.svc.ListFavourites(context.Background(), f.userID, types.NewPageRequest(3, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(25), page.Total)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFavouriteService_Remove(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec(`DELETE FROM favourites`).WithArgs(f.userID, f.asset).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	f.mock.ExpectExec(`DELETE FROM favourites`).WithArgs(f.userID, f.asset).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, f.svc.RemoveFavourite(context.Background(), f.userID, f.asset))
	assert.ErrorIs(t, f.svc.RemoveFavourite(context.Background(), f.userID, f.asset), api.ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFavouriteHandler(t *testing.T) {
	f := newFixture(t)
	h := NewFavouriteHandler(f.svc, discardLogger())

	r := chi.NewRouter()
	r.Post("/favourites", h.AddFavourite)
	r.Get("/favourites/{assetID}", h.FavouriteStatus)

	t.Run("anonymous caller", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/favourites", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("status", func(t *testing.T) {
		f.mock.ExpectQuery(`SELECT id FROM favourites`).WithArgs(f.userID, f.asset).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))

		req := httptest.NewRequest(http.MethodGet, "/favourites/"+f.asset.String(), nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), types.Principal{UserID: f.userID, Role: types.RoleUser}))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"is_favourite":false`)
	})
}
