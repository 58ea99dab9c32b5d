package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

const fileScheme = "file://"

// MigrationStatus is the schema version left behind by RunMigrations
type MigrationStatus struct {
	Version uint
	Applied bool // false when the schema was already current
}

// RunMigrations applies every pending migration found under migrationsPath
// (migrations/postgres or file://migrations/postgres). A dirty schema is refused.
func RunMigrations(databaseURL string, migrationsPath string) (MigrationStatus, error) {
	if migrationsPath == "" {
		return MigrationStatus{}, errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return MigrationStatus{}, errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(sourceURL(migrationsPath), databaseURL)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	status := MigrationStatus{Applied: true}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return MigrationStatus{}, fmt.Errorf("failed to apply migrations: %w", err)
		}
		status.Applied = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return MigrationStatus{}, fmt.Errorf("schema version %d is dirty, fix it manually before starting", version)
	}
	status.Version = version

	return status, nil
}

func sourceURL(migrationsPath string) string {
	if strings.HasPrefix(migrationsPath, fileScheme) {
		return migrationsPath
	}
	return fileScheme + migrationsPath
}
