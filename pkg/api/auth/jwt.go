// Package auth validates the bearer tokens protecting the policy admin
// surface. Tokens are HS256 JWTs minted out of band with the shared admin
// secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the admin surface understands.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants admin access.
func (c *Claims) IsAdmin() bool { return c.Admin }

// Service validates admin bearer tokens.
type Service struct {
	secret []byte
}

// NewService creates a token service from the shared secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// ErrInvalidToken covers every validation failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// Validate parses and verifies a token string.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Mint issues a token. Used by tests.
func (s *Service) Mint(subject string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
