package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", MigrationURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", MigrationURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://already", MigrationURL("pgx5://already"))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := EmbeddedMigrations()
	require.NoError(t, err)
	assert.Contains(t, names, "000001_feature_flags.up.sql")
	assert.Contains(t, names, "000002_audit_logs.up.sql")
	assert.Contains(t, names, "000003_rate_limit_buckets.down.sql")
	assert.Len(t, names, 6)
}

func TestMigrateDown_RejectsNonPositiveSteps(t *testing.T) {
	err := MigrateDown("postgres://localhost/none", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be greater than 0")
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "://bad")
	assert.Error(t, err)
}
