package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts any casing; unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// User is the stored account. PasswordHash and Salt are always written together.
type User struct {
	ID           uuid.UUID
	Role         Role
	Login        string
	PasswordHash string
	Salt         string
	Email        string
	FullName     *string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Role:      u.Role,
		Login:     u.Login,
		Email:     u.Email,
		FullName:  u.FullName,
		IsDeleted: u.IsDeleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UpdateProfileRequest is a partial update; nil fields are left untouched.
type UpdateProfileRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
}

// UserRegistered is handed to registration hooks after the user row is committed.
type UserRegistered struct {
	UserID uuid.UUID
	Login  string
	Email  string
	Role   Role
}
