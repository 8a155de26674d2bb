package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var MigrationFiles embed.FS

// migrationsTable keeps this service's version separate from the schema
// owner's own migration history.
const migrationsTable = "tradepulse_schema_migrations"

// RunMigrations brings the commerce schema up to date. The service only reads
// the store, so autoMigrate is normally off in production; when it is off the
// current version is logged and nothing is applied.
func RunMigrations(db *sql.DB, autoMigrate bool) error {
	sourceDriver, err := iofs.New(MigrationFiles, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if !autoMigrate {
		slog.Info("[Migrations] Auto-migration disabled, skipping",
			"current_version", version,
			"dirty", dirty,
		)
		return nil
	}

	if dirty {
		// Every statement is idempotent, so re-running the interrupted version is safe.
		slog.Warn("[Migrations] Dirty state, re-applying interrupted version", "version", version)
		previous := int(version) - 1
		if previous < 1 {
			previous = database.NilVersion
		}
		if err := m.Force(previous); err != nil {
			return fmt.Errorf("failed to recover dirty migration state at version %d: %w", version, err)
		}
	}

	slog.Info("[Migrations] Running database migrations", "current_version", version)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("[Migrations] Schema is up to date", "version", version)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get updated migration version: %w", err)
	}

	slog.Info("[Migrations] Completed",
		"from_version", version,
		"to_version", newVersion,
	)
	return nil
}
