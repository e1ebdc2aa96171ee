package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

// ParseDirection is case-insensitive.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionAbove:
		return DirectionAbove, true
	case DirectionBelow:
		return DirectionBelow, true
	default:
		return "", false
	}
}

// NotificationRule is a stored price threshold. Nothing in this service evaluates it.
type NotificationRule struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	AssetID            uuid.UUID       `json:"asset_id"`
	TargetPrice        decimal.Decimal `json:"target_price"`
	Direction          Direction       `json:"direction"`
	Enabled            bool            `json:"enabled"`
	RepeatNotification bool            `json:"repeat_notification"`
	LastTriggered      *time.Time      `json:"last_triggered,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type CreateNotificationRuleRequest struct {
	AssetID            uuid.UUID       `json:"asset_id" validate:"required"`
	TargetPrice        decimal.Decimal `json:"target_price"`
	Direction          string          `json:"direction" validate:"required"`
	Enabled            *bool           `json:"enabled,omitempty"`
	RepeatNotification *bool           `json:"repeat_notification,omitempty"`
}

// UpdateNotificationRuleRequest is a partial update; nil fields are left untouched.
type UpdateNotificationRuleRequest struct {
	AssetID            *uuid.UUID       `json:"asset_id,omitempty"`
	TargetPrice        *decimal.Decimal `json:"target_price,omitempty"`
	Direction          *string          `json:"direction,omitempty"`
	Enabled            *bool            `json:"enabled,omitempty"`
	RepeatNotification *bool            `json:"repeat_notification,omitempty"`
}
