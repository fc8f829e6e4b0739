package services

import (
	"context"

	"projecthub/internal/domain/models"
)

// CreateProjectRequest represents a request to create a project
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectService defines business logic operations for projects.
// Every method takes the authenticated caller and enforces the access policy.
type ProjectService interface {
	// CreateProject creates a project owned by user
	CreateProject(ctx context.Context, user *models.User, req *CreateProjectRequest) (*models.Project, error)

	// ListProjects returns projects the user owns or participates in, with documents
	ListProjects(ctx context.Context, user *models.User) ([]models.Project, error)

	// GetProject returns a project with participants and documents (owner or participant)
	GetProject(ctx context.Context, user *models.User, id string) (*models.Project, error)

	// UpdateProject merges patch into the project (owner or participant)
	UpdateProject(ctx context.Context, user *models.User, id string, patch models.ProjectPatch) (*models.Project, error)

	// DeleteProject removes the project, its documents and their blobs (owner only)
	DeleteProject(ctx context.Context, user *models.User, id string) error

	// InviteParticipant adds the named user as a participant (owner only)
	InviteParticipant(ctx context.Context, user *models.User, id, username string) (*models.Project, error)
}
