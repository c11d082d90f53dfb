package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate driver expects.
func MigrationURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrationURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations. No pending migrations is not an error.
func MigrateUp(dsn string) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return fmt.Errorf("op=postgres.MigrateUp: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("op=postgres.MigrateUp: %w", err)
	}
	return nil
}

// MigrateDown rolls back steps migrations.
func MigrateDown(dsn string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("op=postgres.MigrateDown: steps must be greater than 0, got %d", steps)
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return fmt.Errorf("op=postgres.MigrateDown: %w", err)
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("op=postgres.MigrateDown: no migrations to roll back")
		}
		return fmt.Errorf("op=postgres.MigrateDown: %w", err)
	}
	return nil
}

// MigrationStatus returns the applied version and dirty flag; version 0 means none applied.
func MigrationStatus(dsn string) (version uint, dirty bool, err error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, fmt.Errorf("op=postgres.MigrationStatus: %w", err)
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("op=postgres.MigrationStatus: %w", err)
	}
	return version, dirty, nil
}

// EmbeddedMigrations lists the embedded migration file names.
func EmbeddedMigrations() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}
