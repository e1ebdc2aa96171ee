package types

import (
	"time"

	"github.com/google/uuid"
)

type Favourite struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AssetID   uuid.UUID `json:"asset_id"`
	CreatedAt time.Time `json:"created_at"`
}

type AddFavouriteRequest struct {
	AssetID uuid.UUID `json:"asset_id" validate:"required"`
}

type FavouriteStatus struct {
	AssetID     uuid.UUID `json:"asset_id"`
	IsFavourite bool      `json:"is_favourite"`
}
