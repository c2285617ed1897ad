// Package auth issues and verifies the HS256 bearer tokens used by the
// HTTP API, and hashes account passwords.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mnemos/mnemos/internal/domain"
)

// TokenManager signs and parses access tokens. Claims carry only the user
// id plus the standard expiry and issue timestamps.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (m *TokenManager) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	return token.SignedString(m.secret)
}

// Verify returns the user id from a valid token. Expired, malformed or
// wrongly signed tokens all map to domain.ErrTokenInvalid.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrTokenInvalid
	}

	c, ok := token.Claims.(*claims)
	if !ok || c.UserID == "" {
		return "", domain.ErrTokenInvalid
	}
	return c.UserID, nil
}
