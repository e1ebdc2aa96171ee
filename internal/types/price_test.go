package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceFits(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"3150.25", true},
		{"9999999999.99999999", true},
		{"0.00000001", true},
		{"1.50000000000", true},
		{"10000000000", false},
		{"-10000000000", false},
		{"1e12", false},
		{"0.000000001", false},
		{"3150.123456789", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceFits(decimal.RequireFromString(tt.raw)))
		})
	}
}
