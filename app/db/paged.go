package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/wealthflow/internal/types"
)

var ErrUnorderedPage = errors.New("paged query requires an explicit ORDER BY")

// PageQuery describes a filtered, ordered list query.
// Columns and From must not contain the total column, ORDER BY, LIMIT or OFFSET;
// Args are the placeholders used by From.
type PageQuery struct {
	Columns string
	From    string
	OrderBy string
	Args    []any
}

func (q PageQuery) pageSQL() string {
	n := len(q.Args)
	return fmt.Sprintf("SELECT %s, COUNT(*) OVER() AS total_count FROM %s ORDER BY %s LIMIT $%d OFFSET $%d",
		q.Columns, q.From, q.OrderBy, n+1, n+2)
}

func (q PageQuery) countSQL() string {
	return "SELECT COUNT(*) FROM " + q.From
}

// QueryPage fetches one page and the total number of matching rows in a single
// round trip, using a window count next to each row.
//
// fields returns the scan targets for one item; the total column is appended.
// When the requested page is past the end no row carries the window count, so
// the total is read with a plain COUNT over the same filter.
func QueryPage[T any](ctx context.Context, db DBTX, q PageQuery, req types.PageRequest, fields func(*T) []any) (types.PagedResult[T], error) {
	if strings.TrimSpace(q.OrderBy) == "" {
		return types.PagedResult[T]{}, ErrUnorderedPage
	}
	// Hand-built requests get the same bounds as NewPageRequest.
	req = types.NewOffsetRequest(req.Offset, req.Limit)

	args := make([]any, 0, len(q.Args)+2)
	args = append(args, q.Args...)
	args = append(args, req.Limit, req.Offset)

	rows, err := db.Query(ctx, q.pageSQL(), args...)
	if err != nil {
		return types.PagedResult[T]{}, fmt.Errorf("paged query: %w", err)
	}
	defer rows.Close()

	items := make([]T, 0, req.Limit)
	var total int64
	for rows.Next() {
		var item T
		dest := append(fields(&item), &total)
		if err := rows.Scan(dest...); err != nil {
			return types.PagedResult[T]{}, fmt.Errorf("paged query scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return types.PagedResult[T]{}, fmt.Errorf("paged query rows: %w", err)
	}

	if len(items) == 0 && req.Offset > 0 {
		if err := db.QueryRow(ctx, q.countSQL(), q.Args...).Scan(&total); err != nil {
			return types.PagedResult[T]{}, fmt.Errorf("paged query count: %w", err)
		}
	}

	return types.PagedResult[T]{
		Items: items,
		Total: total,
		Page:  req.Page(),
		Size:  req.Limit,
	}, nil
}
