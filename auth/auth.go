package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier checks HS256 bearer tokens and extracts the user identity.
// Verification is local and synchronous; any parse, signature, or claim
// problem is a rejection.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: missing id claim", ErrInvalidToken)
	}
	return userID, nil
}

// Sign issues a token the Verifier accepts. Used by tooling and tests;
// production tokens come from the web app's session layer.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
