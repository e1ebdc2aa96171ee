package types

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Login    string  `json:"login" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangeLoginRequest struct {
	NewLogin        string `json:"new_login" validate:"required,max=100"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// TokenResponse is what clients put behind "Authorization: Bearer".
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RegisterResponse struct {
	User  UserResponse  `json:"user"`
	Token TokenResponse `json:"token"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
