package types

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	// MaxPage is the largest page index accepted from callers.
	MaxPage = math.MaxInt32
)

// PageRequest is a normalised limit/offset pair.
type PageRequest struct {
	Limit  int
	Offset int
}

// NewPageRequest converts a page index and size into a PageRequest.
// Sizes <= 0 fall back to DefaultPageSize and sizes above MaxPageSize are clamped.
// The offset saturates instead of overflowing for huge page indexes.
func NewPageRequest(page, size int) PageRequest {
	if page < 0 {
		page = 0
	}
	size = clampSize(size)
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return PageRequest{Limit: size, Offset: page * size}
}

// NewOffsetRequest builds a PageRequest from a raw offset.
func NewOffsetRequest(offset, limit int) PageRequest {
	if offset < 0 {
		offset = 0
	}
	return PageRequest{Limit: clampSize(limit), Offset: offset}
}

// Page is Offset / Limit.
func (p PageRequest) Page() int {
	if p.Limit <= 0 {
		return 0
	}
	return p.Offset / p.Limit
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

// PagedResult is one page of an ordered query plus the count of all matching rows.
type PagedResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// MapPage converts the items of a page, keeping the paging metadata.
func MapPage[T, R any](p PagedResult[T], fn func(T) R) PagedResult[R] {
	items := make([]R, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, fn(it))
	}
	return PagedResult[R]{Items: items, Total: p.Total, Page: p.Page, Size: p.Size}
}
