package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/wealthflow/config"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

// ErrInvalidToken is the only failure Parse reports.
var ErrInvalidToken = errors.New("invalid or expired token")

const (
	minKeyBytes = 32
	TokenType   = "Bearer"
)

// Claims is the token payload: sub, role, iat, exp and an optional iss.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser turns a raw bearer token into the caller's identity.
type TokenParser interface {
	Parse(token string) (types.Principal, error)
}

// TokenIssuer signs tokens for an authenticated user.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role types.Role) (types.TokenResponse, error)
}

var (
	_ TokenParser = (*TokenService)(nil)
	_ TokenIssuer = (*TokenService)(nil)
)

// TokenService issues and validates HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type TokenService struct {
	key      []byte
	lifetime time.Duration
	skew     time.Duration
	issuer   string
	now      func() time.Time
	parser   *jwt.Parser
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService fails when the secret is missing, too short, or the lifetime is not positive.
func NewTokenService(cfg config.JWTConfig, opts ...TokenOption) (*TokenService, error) {
	key, err := signingKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.Expiration() <= 0 {
		return nil, errors.New("jwt expiration must be positive")
	}
	skew := cfg.ClockSkew()
	if skew < 0 {
		skew = 0
	}

	s := &TokenService{
		key:      key,
		lifetime: cfg.Expiration(),
		skew:     skew,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.skew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

// signingKey prefers the Base64-decoded secret and falls back to its raw bytes;
// whichever is used must be at least 32 bytes long.
func signingKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) >= minKeyBytes {
		return decoded, nil
	}
	if len(secret) >= minKeyBytes {
		return []byte(secret), nil
	}
	return nil, fmt.Errorf("jwt secret must provide at least %d bytes of key material", minKeyBytes)
}

func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

func (s *TokenService) Issue(userID uuid.UUID, role types.Role) (types.TokenResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.lifetime)

	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return types.TokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return types.TokenResponse{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.lifetime / time.Second),
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Parse verifies the signature before reading any claim, then checks
// now ∈ [iat-skew, exp+skew]. A missing role claim means USER.
func (s *TokenService) Parse(raw string) (types.Principal, error) {
	if raw == "" {
		return types.Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil || !token.Valid {
		return types.Principal{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return types.Principal{}, ErrInvalidToken
	}

	role := types.RoleUser
	if claims.Role != "" {
		r, ok := types.ParseRole(claims.Role)
		if !ok {
			return types.Principal{}, ErrInvalidToken
		}
		role = r
	}

	return types.Principal{UserID: userID, Role: role}, nil
}

func (s *TokenService) Validate(raw string) bool {
	_, err := s.Parse(raw)
	return err == nil
}
