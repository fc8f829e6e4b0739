package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a document. The UNIQUE index on storage_key closes the
// window between the object store existence check and the insert.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, filename, storage_key, uploaded_at, project_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING uploaded_at
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.ID,
		doc.Filename,
		doc.StorageKey,
		doc.UploadedAt,
		doc.ProjectID,
	).Scan(&doc.UploadedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return r.storageKeyConflict(ctx, doc.Filename, doc.StorageKey)
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("project for document: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT id, filename, storage_key, uploaded_at, project_id
		FROM %s
		WHERE id = $1
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

// ListByProject retrieves a project's documents ordered by upload time
func (r *PostgresDocumentRepository) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	byProject, err := r.ListByProjects(ctx, []string{projectID})
	if err != nil {
		return nil, err
	}

	docs := byProject[projectID]
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// ListByProjects retrieves documents for several projects in one query
func (r *PostgresDocumentRepository) ListByProjects(ctx context.Context, projectIDs []string) (map[string][]models.Document, error) {
	result := make(map[string][]models.Document, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT id, filename, storage_key, uploaded_at, project_id
		FROM %s
		WHERE project_id = ANY($1::uuid[])
		ORDER BY uploaded_at, filename
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if doc.ProjectID == nil {
			continue
		}
		result[*doc.ProjectID] = append(result[*doc.ProjectID], *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return result, nil
}

// Update persists filename, storage key and upload time
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET filename = $1, storage_key = $2, uploaded_at = $3
		WHERE id = $4
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		doc.Filename,
		doc.StorageKey,
		doc.UploadedAt,
		doc.ID,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return r.storageKeyConflict(ctx, doc.Filename, doc.StorageKey)
		}
		return fmt.Errorf("update document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a document row
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// storageKeyConflict builds a ConflictError pointing at the document that
// already holds key. Inside an aborted transaction the lookup fails, so the
// conflict is returned without an ID.
func (r *PostgresDocumentRepository) storageKeyConflict(ctx context.Context, filename, key string) error {
	conflict := &domain.ConflictError{
		Message:      fmt.Sprintf("document '%s' already exists in this project", filename),
		ResourceType: "document",
	}

	if repositories.GetTx(ctx) != nil {
		return conflict
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE storage_key = $1`, r.tables.Documents)
	var existingID string
	if err := r.pool.QueryRow(ctx, query, key).Scan(&existingID); err != nil {
		r.logger.Debug("could not resolve conflicting document", "storage_key", key, "error", err)
		return conflict
	}
	conflict.ResourceID = existingID
	return conflict
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.StorageKey,
		&doc.UploadedAt,
		&doc.ProjectID,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
