package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Prices are stored as NUMERIC(18, 8).
const (
	PriceScale     = 8
	PriceIntDigits = 10
)

var priceBound = decimal.New(1, PriceIntDigits)

// PriceFits reports whether d can be stored without overflow or rounding.
func PriceFits(d decimal.Decimal) bool {
	return d.Abs().LessThan(priceBound) && d.Equal(d.Truncate(PriceScale))
}

type PriceHistory struct {
	ID         uuid.UUID       `json:"id"`
	AssetID    uuid.UUID       `json:"asset_id"`
	RecordedAt time.Time       `json:"recorded_at"`
	Price      decimal.Decimal `json:"price"`
	Source     *string         `json:"source,omitempty"`
}

type PriceHistoryRequest struct {
	AssetID    uuid.UUID       `json:"asset_id" validate:"required"`
	RecordedAt time.Time       `json:"recorded_at" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	Source     *string         `json:"source,omitempty" validate:"omitempty,max=100"`
}

func (r PriceHistoryRequest) ToPriceHistory() PriceHistory {
	return PriceHistory{
		AssetID:    r.AssetID,
		RecordedAt: r.RecordedAt.UTC(),
		Price:      r.Price,
		Source:     trimmedOrNil(r.Source),
	}
}
