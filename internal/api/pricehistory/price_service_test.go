package pricehistory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/asset"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var (
	assetCols = []string{"id", "ticker_symbol", "name", "type", "external_id", "source", "currency", "last_price", "last_price_at", "created_at", "updated_at"}
	priceCols = []string{"id", "asset_id", "recorded_at", "price", "source"}
)

type recordingCache struct {
	invalidated []types.Asset
}

func (c *recordingCache) Invalidate(a types.Asset) { c.invalidated = append(c.invalidated, a) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T) (*PriceServiceImpl, pgxmock.PgxPoolIface, *recordingCache) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	c := &recordingCache{}
	svc := NewPriceService(
		NewPostgresPriceRepo(mock, discardLogger()),
		asset.NewPostgresAssetRepo(mock, discardLogger()),
		c, mock, discardLogger(),
	)
	return svc, mock, c
}

func ethRow(id uuid.UUID) []any {
	now := time.Now().UTC()
	return []any{id, "ETH", "Ethereum", types.AssetTypeCrypto, (*string)(nil), (*string)(nil), (*string)(nil),
		(*decimal.Decimal)(nil), (*time.Time)(nil), now, now}
}

func TestPriceService_RecordPrice(t *testing.T) {
	assetID := uuid.New()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	price := decimal.RequireFromString("3150.25")

	t.Run("inserts and advances last price in one transaction", func(t *testing.T) {
		svc, mock, c := newService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM assets WHERE id = \$1`).WithArgs(assetID).
			WillReturnRows(pgxmock.NewRows(assetCols).AddRow(ethRow(assetID)...))
		mock.ExpectQuery(`INSERT INTO price_history`).
			WithArgs(assetID, at, pgxmock.AnyArg(), (*string)(nil)).
			WillReturnRows(pgxmock.NewRows(priceCols).AddRow(uuid.New(), assetID, at, price, (*string)(nil)))
		mock.ExpectExec(`UPDATE assets SET last_price`).
			WithArgs(assetID, pgxmock.AnyArg(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		p, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{AssetID: assetID, RecordedAt: at, Price: price})
		require.NoError(t, err)
		assert.True(t, price.Equal(p.Price))
		require.Len(t, c.invalidated, 1)
		assert.Equal(t, "ETH", c.invalidated[0].TickerSymbol)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("older observation leaves the quote alone", func(t *testing.T) {
		svc, mock, c := newService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM assets WHERE id = \$1`).WithArgs(assetID).
			WillReturnRows(pgxmock.NewRows(assetCols).AddRow(ethRow(assetID)...))
		mock.ExpectQuery(`INSERT INTO price_history`).
			WithArgs(assetID, at, pgxmock.AnyArg(), (*string)(nil)).
			WillReturnRows(pgxmock.NewRows(priceCols).AddRow(uuid.New(), assetID, at, price, (*string)(nil)))
		mock.ExpectExec(`UPDATE assets SET last_price`).
			WithArgs(assetID, pgxmock.AnyArg(), at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectCommit()

		_, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{AssetID: assetID, RecordedAt: at, Price: price})
		require.NoError(t, err)
		assert.Empty(t, c.invalidated)
	})

	t.Run("unknown asset rolls back", func(t *testing.T) {
		svc, mock, _ := newService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM assets WHERE id = \$1`).WithArgs(assetID).WillReturnRows(pgxmock.NewRows(assetCols))
		mock.ExpectRollback()

		_, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{AssetID: assetID, RecordedAt: at, Price: price})
		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed quote update rolls back the insert", func(t *testing.T) {
		svc, mock, _ := newService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM assets WHERE id = \$1`).WithArgs(assetID).
			WillReturnRows(pgxmock.NewRows(assetCols).AddRow(ethRow(assetID)...))
		mock.ExpectQuery(`INSERT INTO price_history`).
			WithArgs(assetID, at, pgxmock.AnyArg(), (*string)(nil)).
			WillReturnRows(pgxmock.NewRows(priceCols).AddRow(uuid.New(), assetID, at, price, (*string)(nil)))
		mock.ExpectExec(`UPDATE assets SET last_price`).
			WithArgs(assetID, pgxmock.AnyArg(), at).
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		_, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{AssetID: assetID, RecordedAt: at, Price: price})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("price must fit the stored precision", func(t *testing.T) {
		svc, mock, _ := newService(t)
		for _, raw := range []string{"0", "-1.5", "10000000000", "1e12", "0.000000001", "3150.123456789"} {
			_, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{
				AssetID: assetID, RecordedAt: at, Price: decimal.RequireFromString(raw),
			})
			assert.ErrorIs(t, err, api.ErrBadRequest, raw)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPriceService_RecordPriceOutOfRangeFromStore(t *testing.T) {
	svc, mock, _ := newService(t)
	assetID := uuid.New()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM assets WHERE id = \$1`).WithArgs(assetID).
		WillReturnRows(pgxmock.NewRows(assetCols).AddRow(ethRow(assetID)...))
	mock.ExpectQuery(`INSERT INTO price_history`).
		WithArgs(assetID, at, pgxmock.AnyArg(), (*string)(nil)).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.NumericValueOutOfRange})
	mock.ExpectRollback()

	_, err := svc.RecordPrice(context.Background(), types.PriceHistoryRequest{
		AssetID: assetID, RecordedAt: at, Price: decimal.RequireFromString("9999999999.99999999"),
	})
	assert.ErrorIs(t, err, api.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceService_ListPricesNeedsAsset(t *testing.T) {
	svc, mock, _ := newService(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM assets`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.ListPrices(context.Background(), id, types.NewPageRequest(0, 10))
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceService_LatestAndDelete(t *testing.T) {
	svc, mock, _ := newService(t)
	assetID, priceID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM price_history WHERE asset_id = \$1 ORDER BY recorded_at DESC, id DESC LIMIT 1`).
		WithArgs(assetID).WillReturnRows(pgxmock.NewRows(priceCols))
	mock.ExpectExec(`DELETE FROM price_history`).WithArgs(priceID).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	_, err := svc.LatestPrice(context.Background(), assetID)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.ErrorIs(t, svc.DeletePrice(context.Background(), priceID), api.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
