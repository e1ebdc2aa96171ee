package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor; it is embedded in every hash ($2a$12$...).
	DefaultCost = 12
	saltBytes   = 16

	// bcrypt reads at most 72 bytes and the salt takes 22 of them.
	MaxPasswordBytes  = 72 - 22
	MinPasswordLength = 8
)

var _ PasswordHasher = (*PasswordService)(nil)

// PasswordHasher salts and hashes passwords.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(password, salt string) (string, error)
	Verify(password, salt, hash string) bool
}

// PasswordService hashes password+salt with bcrypt.
type PasswordService struct {
	cost int
}

type PasswordOption func(*PasswordService)

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) PasswordOption {
	return func(s *PasswordService) {
		s.cost = cost
	}
}

func NewPasswordService(opts ...PasswordOption) *PasswordService {
	s := &PasswordService{cost: DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSalt returns 16 random bytes, URL-safe base64 without padding.
func (s *PasswordService) GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *PasswordService) Hash(password, salt string) (string, error) {
	if password == "" || salt == "" {
		return "", fmt.Errorf("password and salt are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password+salt), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify never errors: any empty input or mismatch is just false.
func (s *PasswordService) Verify(password, salt, hash string) bool {
	if password == "" || salt == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password+salt)) == nil
}
