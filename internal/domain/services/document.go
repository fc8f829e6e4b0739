package services

import (
	"context"
	"io"

	"projecthub/internal/domain/models"
)

// UploadedFile is a file received from a multipart request
type UploadedFile struct {
	Filename    string
	Content     io.Reader
	Size        int64
	ContentType string
}

// DocumentService handles document business logic. All operations are scoped
// to the project named in the request path.
type DocumentService interface {
	// ListDocuments lists a project's documents (owner or participant)
	ListDocuments(ctx context.Context, user *models.User, projectID string) ([]models.Document, error)

	// UploadDocument stores a new file under {projectID}/{filename} (owner or participant)
	UploadDocument(ctx context.Context, user *models.User, projectID string, file *UploadedFile) (*models.Document, error)

	// GetDownloadLink returns a presigned URL for the document blob (owner or participant)
	GetDownloadLink(ctx context.Context, user *models.User, projectID, documentID string) (*models.DownloadLink, error)

	// ReplaceDocument replaces the document's file (owner or participant)
	ReplaceDocument(ctx context.Context, user *models.User, projectID, documentID string, file *UploadedFile) (*models.Document, error)

	// DeleteDocument deletes the blob and the metadata row (owner only)
	DeleteDocument(ctx context.Context, user *models.User, projectID, documentID string) error
}
