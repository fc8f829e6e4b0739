package service

import (
	"context"
	"log/slog"

	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"
	"projecthub/internal/domain/services"
)

// purgeBlobs deletes the stored objects of docs. Failures are logged and
// skipped; it returns how many deletes failed.
func purgeBlobs(ctx context.Context, storage services.ObjectStorage, docs []models.Document, logger *slog.Logger) int {
	failed := 0
	for _, doc := range docs {
		if err := storage.Delete(ctx, doc.StorageKey); err != nil {
			failed++
			logger.Warn("failed to delete document blob",
				"document_id", doc.ID,
				"storage_key", doc.StorageKey,
				"error", err,
			)
		}
	}
	return failed
}

// discardDocumentRow removes the row of a document whose blob was never written.
func discardDocumentRow(ctx context.Context, documents repositories.DocumentRepository, doc *models.Document, logger *slog.Logger) {
	if err := documents.Delete(context.WithoutCancel(ctx), doc.ID); err != nil {
		logger.Error("failed to remove document row after failed upload",
			"document_id", doc.ID,
			"storage_key", doc.StorageKey,
			"error", err,
		)
	}
}

// discardBlob removes an object written by a request that later failed.
func discardBlob(ctx context.Context, storage services.ObjectStorage, key string, logger *slog.Logger) {
	if err := storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn("failed to remove orphaned blob",
			"storage_key", key,
			"error", err,
		)
	}
}
