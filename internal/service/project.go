package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"projecthub/internal/config"
	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"
	"projecthub/internal/domain/services"
	"projecthub/internal/service/access"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// projectService implements the ProjectService interface
type projectService struct {
	projectRepo  repositories.ProjectRepository
	documentRepo repositories.DocumentRepository
	userRepo     repositories.UserRepository
	storage      services.ObjectStorage
	txManager    repositories.TransactionManager
	logger       *slog.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	documentRepo repositories.DocumentRepository,
	userRepo repositories.UserRepository,
	storage services.ObjectStorage,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.ProjectService {
	return &projectService{
		projectRepo:  projectRepo,
		documentRepo: documentRepo,
		userRepo:     userRepo,
		storage:      storage,
		txManager:    txManager,
		logger:       logger,
	}
}

// CreateProject creates a new project owned by user
func (s *projectService) CreateProject(ctx context.Context, user *models.User, req *services.CreateProjectRequest) (*models.Project, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		OwnerID:      user.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []models.UserSummary{},
		Documents:    []models.Document{},
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		"id", project.ID,
		"name", project.Name,
		"owner_id", user.ID,
	)

	return project, nil
}

// ListProjects returns every project the user owns or participates in
func (s *projectService) ListProjects(ctx context.Context, user *models.User) ([]models.Project, error) {
	projects, err := s.projectRepo.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []models.Project{}, nil
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	docsByProject, err := s.documentRepo.ListByProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range projects {
		projects[i].Documents = nonNilDocuments(docsByProject[projects[i].ID])
	}

	return projects, nil
}

// GetProject returns a project with participants and documents
func (s *projectService) GetProject(ctx context.Context, user *models.User, id string) (*models.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.RequireParticipantOrOwner(user, project); err != nil {
		return nil, err
	}

	docs, err := s.documentRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	project.Documents = nonNilDocuments(docs)

	return project, nil
}

// UpdateProject merges patch into the stored project. Fields absent from the
// patch keep their values; the owner is never changed.
func (s *projectService) UpdateProject(ctx context.Context, user *models.User, id string, patch models.ProjectPatch) (*models.Project, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := validatePatch(patch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var project *models.Project
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		project, err = s.projectRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		if err := access.RequireParticipantOrOwner(user, project); err != nil {
			return err
		}

		changed, err := patch.Apply(project)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		project.UpdatedAt = time.Now().UTC()
		return s.projectRepo.Update(txCtx, project)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project updated",
		"id", project.ID,
		"user_id", user.ID,
	)

	return project, nil
}

// DeleteProject removes the project's blobs, then its row. Blob failures are
// logged and do not stop the metadata delete, and neither does the request
// being cancelled once the owner check has passed.
func (s *projectService) DeleteProject(ctx context.Context, user *models.User, id string) error {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := access.RequireOwner(user, project); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	docs, err := s.documentRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}

	failed := purgeBlobs(ctx, s.storage, docs, s.logger)

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.projectRepo.Delete(txCtx, project.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("project deleted",
		"id", project.ID,
		"user_id", user.ID,
		"documents", len(docs),
		"orphaned_blobs", failed,
	)

	return nil
}

// InviteParticipant adds the user named username to the project
func (s *projectService) InviteParticipant(ctx context.Context, user *models.User, id, username string) (*models.Project, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}

	// Checked before the project lookup
	if username == user.Username {
		return nil, &domain.ConflictError{
			Message:      "cannot invite yourself",
			ResourceType: "participant",
			ResourceID:   user.ID,
		}
	}

	var project *models.Project
	var invitee *models.User
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		project, err = s.projectRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		if err := access.RequireOwner(user, project); err != nil {
			return err
		}

		invitee, err = s.userRepo.GetByUsername(txCtx, username)
		if err != nil {
			return fmt.Errorf("invitee %q: %w", username, err)
		}

		if invitee.ID == project.OwnerID || project.HasParticipant(invitee.ID) {
			return &domain.ConflictError{
				Message:      "user already in project",
				ResourceType: "participant",
				ResourceID:   invitee.ID,
			}
		}

		// Concurrent invites of the same user hit the composite key
		return s.projectRepo.AddParticipant(txCtx, project.ID, invitee.ID)
	})
	if err != nil {
		return nil, err
	}

	project.Participants = append(project.Participants, invitee.Summary())

	s.logger.Info("participant invited",
		"project_id", project.ID,
		"owner_id", user.ID,
		"invitee_id", invitee.ID,
	)

	return project, nil
}

// validateCreateRequest validates a create project request
func (s *projectService) validateCreateRequest(req *services.CreateProjectRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxProjectNameLength),
			validation.By(validateProjectName),
		),
		validation.Field(&req.Description,
			validation.Length(0, config.MaxProjectDescriptionLength),
		),
	)
}

func validatePatch(patch models.ProjectPatch) error {
	if patch.Name != nil {
		if err := validation.Validate(*patch.Name,
			validation.Length(0, config.MaxProjectNameLength),
			validation.By(validateProjectName),
		); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if patch.Description != nil {
		if err := validation.Validate(*patch.Description,
			validation.Length(0, config.MaxProjectDescriptionLength),
		); err != nil {
			return fmt.Errorf("description: %w", err)
		}
	}
	return nil
}

// validateProjectName rejects names that are blank after trimming
func validateProjectName(value interface{}) error {
	name, ok := value.(string)
	if !ok {
		return fmt.Errorf("name must be a string")
	}

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}

	return nil
}

func nonNilDocuments(docs []models.Document) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	return docs
}
