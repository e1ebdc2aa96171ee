package types

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		want       PageRequest
	}{
		{"defaults", 0, 0, PageRequest{Limit: DefaultPageSize, Offset: 0}},
		{"second page", 2, 10, PageRequest{Limit: 10, Offset: 20}},
		{"negative page", -3, 10, PageRequest{Limit: 10, Offset: 0}},
		{"negative size", 1, -1, PageRequest{Limit: DefaultPageSize, Offset: DefaultPageSize}},
		{"clamped size", 1, 1000, PageRequest{Limit: MaxPageSize, Offset: MaxPageSize}},
		{"largest accepted page", MaxPage, MaxPageSize, PageRequest{Limit: MaxPageSize, Offset: MaxPage * MaxPageSize}},
		{"offset saturates", math.MaxInt, 10, PageRequest{Limit: 10, Offset: (math.MaxInt / 10) * 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPageRequest(tt.page, tt.size)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Offset, 0)
		})
	}
}

func TestPageRequest_Page(t *testing.T) {
	assert.Equal(t, 2, NewPageRequest(2, 10).Page())
	assert.Equal(t, 1, NewOffsetRequest(15, 10).Page())
	assert.Equal(t, 0, PageRequest{}.Page())
}

func TestMapPage(t *testing.T) {
	in := PagedResult[int]{Items: []int{1, 2}, Total: 12, Page: 3, Size: 2}
	out := MapPage(in, strconv.Itoa)

	assert.Equal(t, []string{"1", "2"}, out.Items)
	assert.Equal(t, int64(12), out.Total)
	assert.Equal(t, 3, out.Page)
	assert.Equal(t, 2, out.Size)

	empty := MapPage(PagedResult[int]{}, strconv.Itoa)
	assert.NotNil(t, empty.Items)
}
