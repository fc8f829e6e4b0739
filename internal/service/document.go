package service

import (
	"context"
	"errors"
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

// documentService implements the DocumentService interface
type documentService struct {
	projectRepo  repositories.ProjectRepository
	documentRepo repositories.DocumentRepository
	storage      services.ObjectStorage
	txManager    repositories.TransactionManager
	presignTTL   time.Duration
	logger       *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	projectRepo repositories.ProjectRepository,
	documentRepo repositories.DocumentRepository,
	storage services.ObjectStorage,
	txManager repositories.TransactionManager,
	presignTTL time.Duration,
	logger *slog.Logger,
) services.DocumentService {
	if presignTTL <= 0 {
		presignTTL = config.DefaultPresignTTL
	}
	return &documentService{
		projectRepo:  projectRepo,
		documentRepo: documentRepo,
		storage:      storage,
		txManager:    txManager,
		presignTTL:   presignTTL,
		logger:       logger,
	}
}

// ListDocuments lists a project's documents
func (s *documentService) ListDocuments(ctx context.Context, user *models.User, projectID string) ([]models.Document, error) {
	if _, err := s.loadProject(ctx, user, projectID, false); err != nil {
		return nil, err
	}

	docs, err := s.documentRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return nonNilDocuments(docs), nil
}

// UploadDocument stores a new file in the project. The committed row claims
// the storage key before the conditional blob write, and is removed again if
// the write fails, so a lost race on either the storage key index or the
// object store leaves nothing behind. No connection is held during the write.
func (s *documentService) UploadDocument(ctx context.Context, user *models.User, projectID string, file *services.UploadedFile) (*models.Document, error) {
	if err := validateFilename(file.Filename); err != nil {
		return nil, fmt.Errorf("%w: filename: %v", domain.ErrValidation, err)
	}

	project, err := s.loadProject(ctx, user, projectID, false)
	if err != nil {
		return nil, err
	}

	key := models.StorageKeyFor(project.ID, file.Filename)

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, duplicateFileError(file.Filename)
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		ProjectID:  &project.ID,
		Filename:   file.Filename,
		StorageKey: key,
		UploadedAt: time.Now().UTC(),
	}

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		if domainConflict(err) {
			return nil, duplicateFileError(file.Filename)
		}
		return nil, err
	}

	if err := s.storage.Upload(ctx, key, file.Content, file.Size, file.ContentType, true); err != nil {
		discardDocumentRow(ctx, s.documentRepo, doc, s.logger)
		if domainConflict(err) {
			return nil, duplicateFileError(file.Filename)
		}
		return nil, err
	}

	s.logger.Info("document uploaded",
		"id", doc.ID,
		"project_id", project.ID,
		"user_id", user.ID,
		"size", file.Size,
	)

	return doc, nil
}

// GetDownloadLink returns a presigned URL for the document's blob
func (s *documentService) GetDownloadLink(ctx context.Context, user *models.User, projectID, documentID string) (*models.DownloadLink, error) {
	project, err := s.loadProject(ctx, user, projectID, false)
	if err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(ctx, project.ID, documentID)
	if err != nil {
		return nil, err
	}

	url, err := s.storage.PresignedDownloadURL(ctx, doc.StorageKey, s.presignTTL)
	if err != nil {
		return nil, err
	}

	return &models.DownloadLink{
		URL:       url,
		ExpiresIn: int(s.presignTTL / time.Second),
	}, nil
}

// ReplaceDocument swaps the document's file. The new blob is written first;
// the old blob is removed only after the metadata update commits.
func (s *documentService) ReplaceDocument(ctx context.Context, user *models.User, projectID, documentID string, file *services.UploadedFile) (*models.Document, error) {
	if err := validateFilename(file.Filename); err != nil {
		return nil, fmt.Errorf("%w: filename: %v", domain.ErrValidation, err)
	}

	project, err := s.loadProject(ctx, user, projectID, false)
	if err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(ctx, project.ID, documentID)
	if err != nil {
		return nil, err
	}

	oldKey := doc.StorageKey
	newKey := models.StorageKeyFor(project.ID, file.Filename)
	renamed := newKey != oldKey

	// A rename must not overwrite another document's blob
	if err := s.storage.Upload(ctx, newKey, file.Content, file.Size, file.ContentType, renamed); err != nil {
		if domainConflict(err) {
			return nil, duplicateFileError(file.Filename)
		}
		return nil, err
	}

	updated := *doc
	updated.Filename = file.Filename
	updated.StorageKey = newKey
	updated.UploadedAt = time.Now().UTC()

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.documentRepo.Update(txCtx, &updated)
	})
	if err != nil {
		if renamed {
			discardBlob(ctx, s.storage, newKey, s.logger)
		}
		return nil, err
	}

	if renamed {
		if err := s.storage.Delete(context.WithoutCancel(ctx), oldKey); err != nil {
			s.logger.Warn("failed to delete replaced blob",
				"document_id", doc.ID,
				"storage_key", oldKey,
				"error", err,
			)
		}
	}

	s.logger.Info("document replaced",
		"id", doc.ID,
		"project_id", project.ID,
		"user_id", user.ID,
		"renamed", renamed,
	)

	return &updated, nil
}

// DeleteDocument deletes the blob, then the metadata row. A failed blob
// delete aborts with the row intact. Once the blob delete starts, the
// request being cancelled no longer stops the row delete.
func (s *documentService) DeleteDocument(ctx context.Context, user *models.User, projectID, documentID string) error {
	project, err := s.loadProject(ctx, user, projectID, true)
	if err != nil {
		return err
	}

	doc, err := s.loadDocument(ctx, project.ID, documentID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	if err := s.storage.Delete(ctx, doc.StorageKey); err != nil {
		return err
	}

	if err := s.documentRepo.Delete(ctx, doc.ID); err != nil {
		return err
	}

	s.logger.Info("document deleted",
		"id", doc.ID,
		"project_id", project.ID,
		"user_id", user.ID,
	)

	return nil
}

// loadProject fetches the project and checks the caller's access to it
func (s *documentService) loadProject(ctx context.Context, user *models.User, projectID string, ownerOnly bool) (*models.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if ownerOnly {
		err = access.RequireOwner(user, project)
	} else {
		err = access.RequireParticipantOrOwner(user, project)
	}
	if err != nil {
		return nil, err
	}

	return project, nil
}

// loadDocument fetches a document, treating one attached to another project as missing
func (s *documentService) loadDocument(ctx context.Context, projectID, documentID string) (*models.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.BelongsTo(projectID) {
		return nil, fmt.Errorf("document %s in project %s: %w", documentID, projectID, domain.ErrNotFound)
	}
	return doc, nil
}

// validateFilename accepts a single path segment
func validateFilename(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxFilenameLength),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if s == "." || s == ".." {
				return fmt.Errorf("must not be a relative path")
			}
			if strings.ContainsAny(s, "/\\\x00") {
				return fmt.Errorf("must not contain path separators")
			}
			return nil
		}),
	)
}

func duplicateFileError(filename string) error {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("file '%s' already exists in this project", filename),
		ResourceType: "document",
	}
}

func domainConflict(err error) bool {
	return err != nil && errors.Is(err, domain.ErrConflict)
}
