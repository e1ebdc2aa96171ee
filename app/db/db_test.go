package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/FACorreiaa/wealthflow/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type row struct {
	ID   int
	Name string
}

func rowFields(r *row) []any { return []any{&r.ID, &r.Name} }

func TestCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	created := row{ID: 1, Name: "new"}
	existing := row{ID: 2, Name: "old"}
	boom := errors.New("boom")
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "assets_ticker_symbol_key"}

	tests := []struct {
		name        string
		insertErr   error
		refetchErr  error
		want        row
		wantCreated bool
		wantErr     error
	}{
		{name: "inserted", want: created, wantCreated: true},
		{name: "skipped on conflict", insertErr: pgx.ErrNoRows, want: existing},
		{name: "unique violation", insertErr: unique, want: existing},
		{name: "row vanished", insertErr: pgx.ErrNoRows, refetchErr: pgx.ErrNoRows, wantErr: ErrConflictUnresolved},
		{name: "unique violation and row vanished", insertErr: unique, refetchErr: pgx.ErrNoRows, wantErr: unique},
		{name: "insert failure", insertErr: boom, wantErr: boom},
		{name: "refetch failure", insertErr: pgx.ErrNoRows, refetchErr: boom, wantErr: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refetched := false
			insert := func(context.Context) (row, error) {
				if tt.insertErr != nil {
					return row{}, tt.insertErr
				}
				return created, nil
			}
			refetch := func(context.Context) (row, error) {
				refetched = true
				if tt.refetchErr != nil {
					return row{}, tt.refetchErr
				}
				return existing, nil
			}

			got, wasCreated, err := CreateIfAbsent(ctx, insert, refetch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, wasCreated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCreated, wasCreated)
			assert.Equal(t, !tt.wantCreated, refetched)
		})
	}
}

func TestQueryPage(t *testing.T) {
	q := PageQuery{
		Columns: "id, name",
		From:    "things WHERE owner = $1",
		OrderBy: "id ASC",
		Args:    []any{"alice"},
	}
	cols := []string{"id", "name", "total_count"}

	t.Run("window count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, name, COUNT\(\*\) OVER\(\) AS total_count FROM things WHERE owner = \$1 ORDER BY id ASC LIMIT \$2 OFFSET \$3`).
			WithArgs("alice", 2, 2).
			WillReturnRows(pgxmock.NewRows(cols).AddRow(3, "c", int64(5)).AddRow(4, "d", int64(5)))

		page, err := QueryPage(context.Background(), mock, q, types.NewPageRequest(1, 2), rowFields)
		require.NoError(t, err)
		assert.Equal(t, []row{{3, "c"}, {4, "d"}}, page.Items)
		assert.Equal(t, int64(5), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 2, page.Size)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("past the end falls back to count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).WithArgs("alice", 10, 50).WillReturnRows(pgxmock.NewRows(cols))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM things WHERE owner = \$1`).WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

		page, err := QueryPage(context.Background(), mock, q, types.NewPageRequest(5, 10), rowFields)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.NotNil(t, page.Items)
		assert.Equal(t, int64(7), page.Total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty first page skips count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`LIMIT`).WithArgs("alice", 20, 0).WillReturnRows(pgxmock.NewRows(cols))

		page, err := QueryPage(context.Background(), mock, q, types.NewPageRequest(0, 0), rowFields)
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("raw request is bounded", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).WithArgs("alice", types.MaxPageSize, 0).WillReturnRows(pgxmock.NewRows(cols))

		page, err := QueryPage(context.Background(), mock, q, types.PageRequest{Limit: 1_000_000, Offset: -5}, rowFields)
		require.NoError(t, err)
		assert.Equal(t, types.MaxPageSize, page.Size)
		assert.Zero(t, page.Page)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("order is required", func(t *testing.T) {
		unordered := q
		unordered.OrderBy = " "
		_, err := QueryPage(context.Background(), nil, unordered, types.NewPageRequest(0, 10), rowFields)
		assert.ErrorIs(t, err, ErrUnorderedPage)
	})
}

func TestWithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE things`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = WithTx(context.Background(), mock, func(ctx context.Context, tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE things SET name = 'x'")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { return nil })
		assert.ErrorContains(t, err, "failed to commit transaction")
	})
}

func TestWaitForDB(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("ready after a retry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectPing()

		assert.True(t, WaitForDB(context.Background(), mock, discardLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context gives up", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, WaitForDB(ctx, mock, discardLogger()))
	})
}

func TestErrorClassification(t *testing.T) {
	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "favourites_asset_id_fkey"}
	wrapped := errors.Join(errors.New("insert favourite"), fk)

	assert.True(t, IsForeignKeyViolation(wrapped))
	assert.False(t, IsUniqueViolation(wrapped))
	assert.Equal(t, "favourites_asset_id_fkey", ConstraintName(wrapped))
	assert.Empty(t, ConstraintName(errors.New("plain")))
	assert.True(t, IsNumericOutOfRange(&pgconn.PgError{Code: pgerrcode.NumericValueOutOfRange}))
	assert.False(t, IsNumericOutOfRange(wrapped))
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "SELECT", statementVerb("  select id FROM assets"))
	assert.Equal(t, "INSERT", statementVerb("\n\tINSERT INTO favourites"))
	assert.Equal(t, "UNKNOWN", statementVerb("   "))
}
