package models

import (
	"time"
)

// Document is the metadata row for a blob in the object store. ProjectID is
// nullable in storage; in practice the project cascade removes documents first.
type Document struct {
	ID         string    `json:"id" db:"id"`
	ProjectID  *string   `json:"project_id" db:"project_id"`
	Filename   string    `json:"filename" db:"filename"`
	StorageKey string    `json:"-" db:"storage_key"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// BelongsTo reports whether the document is attached to projectID.
func (d *Document) BelongsTo(projectID string) bool {
	return d.ProjectID != nil && *d.ProjectID == projectID
}

// StorageKeyFor derives the object store key for a file in a project.
func StorageKeyFor(projectID, filename string) string {
	return projectID + "/" + filename
}

// DownloadLink is a presigned, time-limited URL for a document blob.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"` // seconds
}
