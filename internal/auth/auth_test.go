package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := MakeToken("alice", secret)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != "alice" {
		t.Errorf("uid = %q", c.UserID)
	}
	if ttl := time.Until(c.ExpiresAt.Time); ttl <= 0 || ttl > TokenTTL {
		t.Errorf("expiry %v out of range", ttl)
	}
}

func TestParseRejects(t *testing.T) {
	good, _ := MakeToken("alice", secret)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(secret))

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(secret))

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]struct {
		raw, secret string
	}{
		"wrong secret": {good, "other"},
		"expired":      {expired, secret},
		"no subject":   {noSubject, secret},
		"alg none":     {none, secret},
		"garbage":      {"not.a.jwt", secret},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(tt.raw, tt.secret); err == nil {
				t.Error("token accepted")
			}
		})
	}
}

func TestFromHeader(t *testing.T) {
	tok, _ := MakeToken("bob", secret)

	c, err := FromHeader("Bearer "+tok, secret)
	if err != nil || c.UserID != "bob" {
		t.Fatalf("got %v, %v", c, err)
	}
	if _, err := FromHeader("", secret); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty header: %v", err)
	}
	if _, err := FromHeader("Bearer ", secret); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty bearer: %v", err)
	}
}

func TestOwns(t *testing.T) {
	c := &Claims{UserID: "Alice"}
	if !c.Owns("alice") || !c.Owns("ALICE") {
		t.Error("case-insensitive match failed")
	}
	if c.Owns("bob") {
		t.Error("owns someone else's appointments")
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("claims in empty context")
	}
	ctx := WithClaims(context.Background(), &Claims{UserID: "alice"})
	c, ok := FromContext(ctx)
	if !ok || c.UserID != "alice" {
		t.Errorf("got %v, %v", c, ok)
	}
}
