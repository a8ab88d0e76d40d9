package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsURL is the migration source relative to the repository root.
const DefaultMigrationsURL = "file://internal/db/migrations"

// MigrateUp applies every pending up migration.
func MigrateUp(sourceURL, dsn string) error {
	return runMigrations(sourceURL, dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back steps migrations, or all of them when steps <= 0.
func MigrateDown(sourceURL, dsn string, steps int) error {
	return runMigrations(sourceURL, dsn, func(m *migrate.Migrate) error {
		if steps <= 0 {
			return m.Down()
		}
		return m.Steps(-steps)
	})
}

func runMigrations(sourceURL, dsn string, apply func(*migrate.Migrate) error) error {
	migrator, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := apply(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
