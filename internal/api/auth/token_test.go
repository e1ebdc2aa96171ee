package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/wealthflow/config"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokenService(t *testing.T, clock *fakeClock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(config.JWTConfig{
		Secret:            testSecret,
		ExpirationSeconds: 3600,
		ClockSkewSeconds:  30,
		Issuer:            "wealthflow-test",
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestNewTokenService_SigningKey(t *testing.T) {
	base := config.JWTConfig{ExpirationSeconds: 60}

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewTokenService(base)
		assert.Error(t, err)
	})

	t.Run("short raw secret", func(t *testing.T) {
		cfg := base
		cfg.Secret = "too-short"
		_, err := NewTokenService(cfg)
		assert.Error(t, err)
	})

	t.Run("base64 secret decoding to 32 bytes", func(t *testing.T) {
		cfg := base
		cfg.Secret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
		svc, err := NewTokenService(cfg)
		require.NoError(t, err)
		assert.Equal(t, []byte(strings.Repeat("k", 32)), svc.key)
	})

	t.Run("base64 secret decoding short falls back to raw bytes", func(t *testing.T) {
		cfg := base
		// 32 base64 characters decode to 24 bytes
		cfg.Secret = strings.Repeat("abcd", 8)
		svc, err := NewTokenService(cfg)
		require.NoError(t, err)
		assert.Equal(t, []byte(cfg.Secret), svc.key)
	})

	t.Run("non-positive lifetime", func(t *testing.T) {
		_, err := NewTokenService(config.JWTConfig{Secret: testSecret})
		assert.Error(t, err)
	})
}

func TestTokenService_IssueAndParse(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newTestTokenService(t, clock)
	userID := uuid.New()

	tok, err := svc.Issue(userID, types.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	assert.Len(t, strings.Split(tok.AccessToken, "."), 3)

	p, err := svc.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, types.RoleAdmin, p.Role)
}

func TestTokenService_ValidityWindow(t *testing.T) {
	issuedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	svc := newTestTokenService(t, clock)

	tok, err := svc.Issue(uuid.New(), types.RoleUser)
	require.NoError(t, err)
	expiresAt := issuedAt.Add(time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after issue", issuedAt, true},
		{"half way", issuedAt.Add(30 * time.Minute), true},
		{"just after expiry within skew", expiresAt.Add(20 * time.Second), true},
		{"past expiry plus skew", expiresAt.Add(31 * time.Second), false},
		{"slightly before issue within skew", issuedAt.Add(-20 * time.Second), true},
		{"long before issue", issuedAt.Add(-5 * time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.t = tt.now
			assert.Equal(t, tt.want, svc.Validate(tok.AccessToken))
		})
	}
}

func TestTokenService_RejectsTampering(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	tok, err := svc.Issue(uuid.New(), types.RoleUser)
	require.NoError(t, err)

	t.Run("altered signature", func(t *testing.T) {
		parts := strings.Split(tok.AccessToken, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)
		_, err := svc.Parse(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("non-canonical signature encoding", func(t *testing.T) {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
		parts := strings.Split(tok.AccessToken, ".")
		sig := []byte(parts[2])
		last := strings.IndexByte(alphabet, sig[len(sig)-1])
		require.GreaterOrEqual(t, last, 0)
		// the low bits of the final character are padding for a 32-byte HMAC
		sig[len(sig)-1] = alphabet[last^1]

		original, err := base64.RawURLEncoding.DecodeString(parts[2])
		require.NoError(t, err)
		lenient, err := base64.RawURLEncoding.DecodeString(string(sig))
		require.NoError(t, err)
		require.Equal(t, original, lenient, "both encodings carry the same MAC")

		_, err = svc.Parse(parts[0] + "." + parts[1] + "." + string(sig))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("forged role with another key", func(t *testing.T) {
		claims := Claims{
			Role: string(types.RoleAdmin),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.New().String(),
				Issuer:    "wealthflow-test",
				IssuedAt:  jwt.NewNumericDate(clock.t),
				ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
			},
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.Repeat("x", 32)))
		require.NoError(t, err)
		_, err = svc.Parse(forged)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": uuid.New().String(), "exp": clock.t.Add(time.Hour).Unix(), "iat": clock.t.Unix()}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, raw := range []string{"", "abc", "a.b.c"} {
			_, err := svc.Parse(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		}
	})
}

func TestTokenService_MissingRoleDefaultsToUser(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestTokenService(t, clock)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    "wealthflow-test",
			IssuedAt:  jwt.NewNumericDate(clock.t),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.key)
	require.NoError(t, err)

	p, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, p.Role)
}
