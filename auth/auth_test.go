package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return signed
}

func TestJWTVerifier_Valid(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":      float64(42),
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.UserID != 42 || id.Username != "alice" {
		t.Errorf("Unexpected identity: %+v", id)
	}
}

func TestJWTVerifier_StringSubject(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "secret", jwt.MapClaims{"sub": "7", "username": "bob"})

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.UserID != 7 {
		t.Errorf("UserID = %d, want 7", id.UserID)
	}
}

func TestJWTVerifier_Rejections(t *testing.T) {
	v := NewJWTVerifier("secret")

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, "other", jwt.MapClaims{"sub": float64(1), "username": "x"})},
		{"expired", signToken(t, "secret", jwt.MapClaims{
			"sub": float64(1), "username": "x", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing username", signToken(t, "secret", jwt.MapClaims{"sub": float64(1)})},
		{"missing sub", signToken(t, "secret", jwt.MapClaims{"username": "x"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); err == nil {
				t.Error("Expected rejection")
			}
		})
	}
}
