package postgres

import (
	"strings"
	"testing"
)

func TestNewTableNames(t *testing.T) {
	tables := NewTableNames("test_")

	want := map[string]string{
		"users":        "test_users",
		"projects":     "test_projects",
		"participants": "test_project_participants",
		"documents":    "test_documents",
	}
	got := map[string]string{
		"users":        tables.Users,
		"projects":     tables.Projects,
		"participants": tables.Participants,
		"documents":    tables.Documents,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s table = %q, want %q", k, got[k], v)
		}
	}
}

func TestSchemaStatements_Constraints(t *testing.T) {
	stmts := strings.Join(schemaStatements(NewTableNames("dev_")), "\n")

	mustContain := []string{
		"username VARCHAR(64) NOT NULL UNIQUE",
		"storage_key TEXT NOT NULL UNIQUE",
		"PRIMARY KEY (project_id, user_id)",
		"owner_id UUID NOT NULL REFERENCES dev_users(id) ON DELETE CASCADE",
		"project_id UUID REFERENCES dev_projects(id) ON DELETE CASCADE",
	}
	for _, s := range mustContain {
		if !strings.Contains(stmts, s) {
			t.Errorf("schema missing %q", s)
		}
	}
}
