package repositories

import (
	"context"

	"projecthub/internal/domain/models"
)

// DocumentRepository defines data access operations for document metadata
type DocumentRepository interface {
	// Create inserts a document. Returns a ConflictError if the storage key is taken.
	Create(ctx context.Context, doc *models.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// ListByProject retrieves a project's documents ordered by upload time
	ListByProject(ctx context.Context, projectID string) ([]models.Document, error)

	// ListByProjects retrieves documents for several projects, keyed by project ID
	ListByProjects(ctx context.Context, projectIDs []string) (map[string][]models.Document, error)

	// Update persists filename, storage key and upload time
	Update(ctx context.Context, doc *models.Document) error

	// Delete removes a document row
	Delete(ctx context.Context, id string) error
}
