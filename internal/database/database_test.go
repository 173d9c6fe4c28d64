package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/ingest?sslmode=disable", MigrateURL("postgres://u:p@db:5432/ingest?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/ingest", MigrateURL("postgresql://u@db/ingest"))
	assert.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	up, down := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			down[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, up)
	assert.Equal(t, up, down)
}

func TestInitMigrationConstraints(t *testing.T) {
	raw, err := fs.ReadFile(migrationFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)
	assert.Contains(t, sql, "UNIQUE (user_id, fingerprint)")
	assert.Contains(t, sql, "UNIQUE (job_id, row_hash, row_occurrence)")
	assert.Contains(t, sql, "UNIQUE (job_id, issue_key)")
	assert.Contains(t, sql, "REFERENCES issues(id, job_id)")
	assert.Contains(t, sql, "REFERENCES staging_records(id, job_id)")
}
