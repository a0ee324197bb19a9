// Package database resolves the configured storage location and opens connections to it.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const memoryPath = ":memory:"

var ErrEmptyURL = errors.New("database url is empty")

// Target is a resolved storage location.
type Target struct {
	Driver string
	DSN    string
	// Path is the SQLite file path; empty for Postgres and in-memory databases.
	Path string
}

// ParseURL maps a storage location to a driver and DSN.
//
// postgres:// and postgresql:// URLs select Postgres. Anything else is a SQLite location:
// sqlite:///relative.db, sqlite:////absolute.db, a plain file path or :memory:.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, ErrEmptyURL
	}

	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return Target{Driver: DriverPostgres, DSN: raw}, nil
	}

	path := strings.TrimPrefix(raw, "sqlite:///")
	if path == "" {
		return Target{}, ErrEmptyURL
	}

	if path == memoryPath {
		return Target{
			Driver: DriverSQLite,
			DSN:    "file::memory:?cache=shared&_busy_timeout=5000",
		}, nil
	}

	return Target{
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path),
		Path:   path,
	}, nil
}

// Options tunes the connection pool. Zero values keep driver-appropriate defaults.
type Options struct {
	MaxOpenConns int
}

// Open resolves rawURL, creates the SQLite parent directory when needed and returns a
// verified connection pool.
func Open(ctx context.Context, rawURL string, opts Options) (*sqlx.DB, Target, error) {
	target, err := ParseURL(rawURL)
	if err != nil {
		return nil, Target{}, err
	}

	if target.Path != "" {
		if dir := filepath.Dir(target.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, Target{}, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, Target{}, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Target{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	configurePool(db, target, opts)

	return db, target, nil
}

func configurePool(db *sqlx.DB, target Target, opts Options) {
	switch target.Driver {
	case DriverSQLite:
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
}
