package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements returns the DDL for all tables, in dependency order.
func schemaStatements(t *TableNames) []string {
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(64) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Users),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Projects, t.Users),

		// The composite key makes a concurrent duplicate invite fail at commit
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			project_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			PRIMARY KEY (project_id, user_id)
		)`, t.Participants, t.Projects, t.Users),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			filename VARCHAR(255) NOT NULL,
			storage_key TEXT NOT NULL UNIQUE,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			project_id UUID REFERENCES %s(id) ON DELETE CASCADE
		)`, t.Documents, t.Projects),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner_id)`, t.Projects, t.Projects),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)`, t.Participants, t.Participants),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_project ON %s(project_id)`, t.Documents, t.Documents),
	}
}

// EnsureSchema creates tables and indexes if they don't exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, stmt := range schemaStatements(tables) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops all tables in reverse dependency order
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Documents, tables.Participants, tables.Projects, tables.Users} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
