package postgres

import (
	"context"
	"fmt"

	"projecthub/internal/domain"
	"projecthub/internal/domain/models"
	"projecthub/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProjectRepository implements the ProjectRepository interface
type PostgresProjectRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(config *RepositoryConfig) repositories.ProjectRepository {
	return &PostgresProjectRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create creates a new project
func (r *PostgresProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, r.tables.Projects)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.OwnerID,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("owner %s: %w", project.OwnerID, domain.ErrNotFound)
		}
		return fmt.Errorf("create project: %w", err)
	}

	if project.Participants == nil {
		project.Participants = []models.UserSummary{}
	}

	return nil
}

// GetByID retrieves a project and its participants
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Projects)

	var project models.Project
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.OwnerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	participants, err := r.listParticipants(ctx, []string{project.ID})
	if err != nil {
		return nil, err
	}
	project.Participants = participants[project.ID]
	if project.Participants == nil {
		project.Participants = []models.UserSummary{}
	}

	return &project, nil
}

// ListForUser retrieves owned and participating projects, newest first
func (r *PostgresProjectRepository) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at
		FROM %s p
		WHERE p.owner_id = $1
		   OR EXISTS (
				SELECT 1 FROM %s pp
				WHERE pp.project_id = p.id AND pp.user_id = $1
		   )
		ORDER BY p.created_at DESC
	`, r.tables.Projects, r.tables.Participants)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.Description,
			&project.OwnerID,
			&project.CreatedAt,
			&project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	if len(projects) == 0 {
		return projects, nil
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	participants, err := r.listParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Participants = participants[projects[i].ID]
		if projects[i].Participants == nil {
			projects[i].Participants = []models.UserSummary{}
		}
	}

	return projects, nil
}

// ListOwnedIDs returns the IDs of projects owned by ownerID
func (r *PostgresProjectRepository) ListOwnedIDs(ctx context.Context, ownerID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE owner_id = $1`, r.tables.Projects)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owned projects: %w", err)
	}

	return ids, nil
}

// Update persists name, description and updated_at. Owner is never written.
func (r *PostgresProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`, r.tables.Projects)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		project.Name,
		project.Description,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", project.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a project; documents and participation rows cascade
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Projects)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// AddParticipant inserts a participation row
func (r *PostgresProjectRepository) AddParticipant(ctx context.Context, projectID, userID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (project_id, user_id)
		VALUES ($1, $2)
	`, r.tables.Participants)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, projectID, userID); err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      "user already in project",
				ResourceType: "participant",
				ResourceID:   userID,
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("project %s or user %s: %w", projectID, userID, domain.ErrNotFound)
		}
		return fmt.Errorf("add participant: %w", err)
	}

	return nil
}

// listParticipants loads participants for the given projects, keyed by project ID
func (r *PostgresProjectRepository) listParticipants(ctx context.Context, projectIDs []string) (map[string][]models.UserSummary, error) {
	query := fmt.Sprintf(`
		SELECT pp.project_id, u.id, u.username
		FROM %s pp
		JOIN %s u ON u.id = pp.user_id
		WHERE pp.project_id = ANY($1::uuid[])
		ORDER BY u.username
	`, r.tables.Participants, r.tables.Users)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.UserSummary, len(projectIDs))
	for rows.Next() {
		var projectID string
		var user models.UserSummary
		if err := rows.Scan(&projectID, &user.ID, &user.Username); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		result[projectID] = append(result[projectID], user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return result, nil
}
