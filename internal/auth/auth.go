package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrBadToken = errors.New("invalid token")
	ErrNoToken  = errors.New("no token")
)

// TokenTTL is the lifetime of tokens minted by MakeToken.
const TokenTTL = 15 * time.Minute

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func MakeToken(uid, secret string) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}

// FromHeader parses an "Authorization: Bearer <jwt>" value.
func FromHeader(header, secret string) (*Claims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, ErrNoToken
	}
	return ParseToken(raw, secret)
}

// Owns reports whether the token subject may act on userid's appointments.
// User ids compare case-insensitively, the same way appointment ids fold
// them.
func (c *Claims) Owns(userid string) bool {
	return strings.EqualFold(c.UserID, userid)
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims of an authenticated request. ok is false
// when authentication is disabled.
func FromContext(ctx context.Context) (c *Claims, ok bool) {
	c, ok = ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}
