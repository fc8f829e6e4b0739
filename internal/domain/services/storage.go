package services

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is the gateway to the blob store.
type ObjectStorage interface {
	// Exists reports whether an object is stored under key. A missing object
	// is (false, nil), not an error.
	Exists(ctx context.Context, key string) (bool, error)

	// Upload writes body under key. With createOnly set the write is
	// conditional and fails with domain.ErrConflict if the key already exists.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) error

	// PresignedDownloadURL returns a capability URL valid for ttl
	PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes the object stored under key
	Delete(ctx context.Context, key string) error
}
