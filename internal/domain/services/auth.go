package services

import (
	"context"

	"projecthub/internal/domain/models"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeat_password"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountService owns credentials and sessions.
//
// Login and Authenticate fail closed: every failure is domain.ErrUnauthorized,
// whether the user is unknown, the password is wrong, or the token is
// malformed or expired.
type AccountService interface {
	// Register creates a user. Duplicate usernames are a conflict; a
	// password/repeat mismatch is a validation error.
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)

	// Login verifies credentials and issues a bearer token
	Login(ctx context.Context, req *LoginRequest) (*models.AccessToken, error)

	// Authenticate verifies a bearer token and resolves its subject to a user
	Authenticate(ctx context.Context, token string) (*models.User, error)

	// DeleteAccount removes the user and everything they own
	DeleteAccount(ctx context.Context, user *models.User) error
}
