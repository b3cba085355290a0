package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/VoidMesh/voxelstore/internal/db/migrations"
	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// runMigrations brings the schema of an open store up to date. The migrate
// instance is not closed: closing it would close sqlDB.
func runMigrations(sqlDB *sql.DB) error {
	log.Debug("Creating migration source", "source", "embedded")
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Debug("No new migrations to apply")
	} else {
		log.Debug("Successfully applied migrations")
	}
	return nil
}
