package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the JWT payload of an issued bearer token.
// The subject claim carries the username.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// GetUsername returns the username from the JWT subject claim.
func (c *AccessClaims) GetUsername() string {
	return c.Subject
}

// AccessToken is returned by a successful login.
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
