package repositories

import (
	"context"

	"projecthub/internal/domain/models"
)

// UserRepository defines data access operations for users
type UserRepository interface {
	// Create inserts a new user. Returns a ConflictError if the username is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Delete removes a user. Owned projects, their documents and the user's
	// participation rows are removed by cascade.
	Delete(ctx context.Context, id string) error
}
