// Package migrations applies the embedded schema for the configured SQL dialect.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var migrationsFS embed.FS

// Migrator manages schema versions
type Migrator struct {
	migrate *migrate.Migrate
	logger  *slog.Logger
	owned   bool // the migrator opened its own connection
}

// New builds a migrator for driver ("sqlite3" or "postgres").
// sqlite3 runs on the caller's handle so in-memory databases see the schema.
// postgres opens its own connection from dsn, which must be a URL.
func New(db *sql.DB, driver, dsn string, logger *slog.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "sql/"+driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source for %s: %w", driver, err)
	}

	switch driver {
	case "sqlite3":
		instance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return nil, fmt.Errorf("wrap sqlite3 handle: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "sqlite3", instance)
		if err != nil {
			return nil, fmt.Errorf("create migrator: %w", err)
		}
		return &Migrator{migrate: m, logger: logger}, nil

	case "postgres":
		m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
		if err != nil {
			return nil, fmt.Errorf("create migrator: %w", err)
		}
		return &Migrator{migrate: m, logger: logger, owned: true}, nil

	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	version, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		m.logger.Warn("schema is dirty, forcing last version", "version", version)
		if err := m.migrate.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debug("schema up to date", "version", version)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, _ := m.migrate.Version()
	m.logger.Info("schema migrated", "from", version, "to", newVersion)
	return nil
}

// Down rolls back one version
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("roll back: %w", err)
	}
	return nil
}

// Version returns the current schema version, 0 before the first migration
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migrator's own connection.
// It is a no-op when the migrator runs on a borrowed handle, since closing
// the sqlite3 driver would close the caller's *sql.DB.
func (m *Migrator) Close() error {
	if !m.owned {
		return nil
	}
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}
