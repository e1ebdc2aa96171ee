package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrConflictUnresolved is returned when an insert was skipped on conflict
// but the row holding the key is gone by the time it is re-read.
var ErrConflictUnresolved = errors.New("insert skipped on conflict and no existing row was found")

// CreateIfAbsent runs an "insert or skip" statement and falls back to reading
// the row that owns the natural key.
//
// insert is expected to run INSERT ... ON CONFLICT DO NOTHING RETURNING ...,
// so a skipped write shows up as pgx.ErrNoRows. A unique violation raised by
// the store is handled the same way. refetch must return pgx.ErrNoRows when
// nothing matches the key.
//
// The bool result is true only when this call inserted the row.
func CreateIfAbsent[T any](ctx context.Context, insert, refetch func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	row, err := insert(ctx)
	if err == nil {
		return row, true, nil
	}

	var cause error
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		cause = ErrConflictUnresolved
	case IsUniqueViolation(err):
		cause = err
	default:
		return zero, false, err
	}

	existing, ferr := refetch(ctx)
	if ferr != nil {
		if errors.Is(ferr, pgx.ErrNoRows) {
			return zero, false, cause
		}
		return zero, false, fmt.Errorf("refetch after conflict: %w", ferr)
	}
	return existing, false, nil
}
