// Package migrate applies the embedded schema migrations to the configured database.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/popeskul/inbound-messages/internal/infrastructure/database"
	"github.com/popeskul/inbound-messages/migrations"
)

type Config struct {
	DatabaseURL string
	// Migrations defaults to the embedded migrations.FS; it must contain one
	// directory per driver name.
	Migrations fs.FS
}

type Runner struct {
	config *Config
}

func NewRunner(config *Config) *Runner {
	return &Runner{
		config: config,
	}
}

// Run applies every pending migration. Running it against an up-to-date schema is a no-op.
func (r *Runner) Run() error {
	m, closeFn, err := r.open()
	if err != nil {
		return err
	}
	defer closeFn()

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	return nil
}

// Rollback rolls back the last migration
func (r *Runner) Rollback() error {
	m, closeFn, err := r.open()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	return nil
}

// Version returns the current migration version
func (r *Runner) Version() (uint, bool, error) {
	m, closeFn, err := r.open()
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}

	return version, dirty, nil
}

// open builds a migrate instance on a dedicated connection; the returned func releases it.
func (r *Runner) open() (*migrate.Migrate, func(), error) {
	target, err := database.ParseURL(r.config.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve database url: %w", err)
	}

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := newDriver(target.Driver, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	fsys := r.config.Migrations
	if fsys == nil {
		fsys = migrations.FS
	}

	src, err := iofs.New(fsys, target.Driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, target.Driver, driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	closeFn := func() {
		// Some drivers close the pool themselves; sql.DB.Close is idempotent.
		_, _ = m.Close()
		_ = db.Close()
	}

	return m, closeFn, nil
}

func newDriver(name string, db *sql.DB) (migratedb.Driver, error) {
	switch name {
	case database.DriverPostgres:
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres driver: %w", err)
		}
		return driver, nil
	case database.DriverSQLite:
		driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite3 driver: %w", err)
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", name)
	}
}
