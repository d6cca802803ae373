// Package auth consumes the external token-issuance service: it only
// verifies tokens, it never mints them.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified token resolves to.
type Identity struct {
	UserID   int64
	Username string
}

// Verifier checks a handshake token. Called once per connection.
type Verifier interface {
	Verify(token string) (Identity, error)
}

var ErrInvalidToken = errors.New("invalid token")

// JWTVerifier validates HS256 tokens signed with the shared secret the
// issuance service uses. Expected claims: sub (user id), username.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	userID, err := parseUserID(claims["sub"])
	if err != nil {
		return Identity{}, err
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return Identity{}, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}

	return Identity{UserID: userID, Username: username}, nil
}

func parseUserID(claim interface{}) (int64, error) {
	switch v := claim.(type) {
	case float64:
		return int64(v), nil
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err != nil {
			return 0, fmt.Errorf("%w: bad sub claim %q", ErrInvalidToken, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
}
