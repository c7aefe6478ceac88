package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing credential token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenVerifier checks bearer credentials issued by the auth service. This
// core never mints tokens; it only verifies the shared-secret signature and
// resolves the subject to a user id.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses tokenStr and returns the user id it was issued for.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		// The auth service historically put the user id in an "id" claim
		// instead of the subject; accept both.
		if id, ok := claims["id"].(string); ok && id != "" {
			return id, nil
		}
		return "", ErrInvalidToken
	}
	return sub, nil
}
