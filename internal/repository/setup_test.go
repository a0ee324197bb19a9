package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/popeskul/inbound-messages/internal/infrastructure/database"
	"github.com/popeskul/inbound-messages/internal/infrastructure/migrate"
)

type backend struct {
	name  string
	setup func(t *testing.T) *sqlx.DB
}

var backends = []backend{
	{name: "sqlite", setup: setupSQLiteDB},
	{name: "postgres", setup: setupPostgresDB},
}

// forEachBackend runs fn against a freshly migrated database of every supported driver.
func forEachBackend(t *testing.T, fn func(t *testing.T, db *sqlx.DB)) {
	t.Helper()

	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.setup(t))
		})
	}
}

func setupSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	return openMigrated(t, path)
}

func setupPostgresDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(ctx)
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return openMigrated(t, dsn)
}

func openMigrated(t *testing.T, url string) *sqlx.DB {
	t.Helper()

	require.NoError(t, migrate.NewRunner(&migrate.Config{DatabaseURL: url}).Run())

	db, _, err := database.Open(context.Background(), url, database.Options{MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func cleanupTestData(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec("DELETE FROM messages")
	require.NoError(t, err)
}
