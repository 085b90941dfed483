// Package auth reads identity claims out of backend-issued JWTs. The client
// never verifies signatures (it holds no key); it only extracts the subject
// and checks expiry so stale sessions are cleared instead of failing remotely.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizboard-client/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims mirrors the backend's token payload.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Parse decodes the token without verifying its signature.
func Parse(token string) (Claims, error) {
	claims := Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim in the past.
// Tokens without an exp claim never expire client-side.
func Expired(token string, now time.Time) bool {
	claims, err := Parse(token)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}

// IdentityFromToken builds an Identity from token claims. The login response
// does not always echo the user id, so the token is the fallback source.
func IdentityFromToken(token, fallbackUsername string) (domain.Identity, error) {
	claims, err := Parse(token)
	if err != nil {
		return domain.Identity{}, err
	}
	id := domain.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Token:    token,
	}
	if id.UserID == "" {
		id.UserID = claims.Subject
	}
	if id.Username == "" {
		id.Username = fallbackUsername
	}
	if id.UserID == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	return id, nil
}
