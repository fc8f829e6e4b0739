package repositories

import (
	"context"

	"projecthub/internal/domain/models"
)

// ProjectRepository defines data access operations for projects and their participants
type ProjectRepository interface {
	// Create inserts a new project
	Create(ctx context.Context, project *models.Project) error

	// GetByID retrieves a project with its participants
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// ListForUser retrieves projects owned by or shared with the user, newest first
	ListForUser(ctx context.Context, userID string) ([]models.Project, error)

	// ListOwnedIDs returns the IDs of projects owned by the user
	ListOwnedIDs(ctx context.Context, ownerID string) ([]string, error)

	// Update persists name, description and updated_at
	Update(ctx context.Context, project *models.Project) error

	// Delete removes a project; documents and participation rows cascade
	Delete(ctx context.Context, id string) error

	// AddParticipant inserts a participation row. Returns a ConflictError
	// if the pair already exists.
	AddParticipant(ctx context.Context, projectID, userID string) error
}
