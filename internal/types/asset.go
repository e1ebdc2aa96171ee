package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeCrypto AssetType = "CRYPTO"
)

func ParseAssetType(s string) (AssetType, bool) {
	switch AssetType(strings.ToUpper(strings.TrimSpace(s))) {
	case AssetTypeStock:
		return AssetTypeStock, true
	case AssetTypeCrypto:
		return AssetTypeCrypto, true
	default:
		return "", false
	}
}

type Asset struct {
	ID           uuid.UUID        `json:"id"`
	TickerSymbol string           `json:"ticker_symbol"`
	Name         string           `json:"name"`
	Type         AssetType        `json:"type"`
	ExternalID   *string          `json:"external_id,omitempty"`
	Source       *string          `json:"source,omitempty"`
	Currency     *string          `json:"currency,omitempty"`
	LastPrice    *decimal.Decimal `json:"last_price,omitempty"`
	LastPriceAt  *time.Time       `json:"last_price_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// AssetRequest is used for both create and update. On update the ticker must match the stored one.
type AssetRequest struct {
	TickerSymbol string  `json:"ticker_symbol" validate:"required,max=50"`
	Name         string  `json:"name" validate:"required,max=255"`
	Type         string  `json:"type" validate:"required"`
	ExternalID   *string `json:"external_id,omitempty" validate:"omitempty,max=255"`
	Source       *string `json:"source,omitempty" validate:"omitempty,max=100"`
	Currency     *string `json:"currency,omitempty" validate:"omitempty,max=10"`
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// ToAsset converts a validated request into an Asset candidate.
func (r AssetRequest) ToAsset(t AssetType) Asset {
	return Asset{
		TickerSymbol: NormalizeTicker(r.TickerSymbol),
		Name:         strings.TrimSpace(r.Name),
		Type:         t,
		ExternalID:   trimmedOrNil(r.ExternalID),
		Source:       trimmedOrNil(r.Source),
		Currency:     upperOrNil(r.Currency),
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func upperOrNil(s *string) *string {
	v := trimmedOrNil(s)
	if v == nil {
		return nil
	}
	u := strings.ToUpper(*v)
	return &u
}
