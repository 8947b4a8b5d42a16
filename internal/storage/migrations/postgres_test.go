package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"loyalty-service/internal/storage/postgres"
)

func setupMigrationDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestRunPostgresMigrations_RecordsAndSkipsApplied(t *testing.T) {
	pool, cleanup := setupMigrationDB(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, RunPostgresMigrations(ctx, pool))

	var registered int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&registered)
	require.NoError(t, err)
	assert.Equal(t, 3, registered, "every migration file should be registered")

	var firstApplied int64
	err = pool.QueryRow(ctx,
		`SELECT applied_at FROM schema_migrations WHERE filename = '001_loyalty_ledger.sql'`,
	).Scan(&firstApplied)
	require.NoError(t, err)
	assert.Positive(t, firstApplied)

	// A second run must be a no-op: already-registered files are skipped,
	// their applied_at stamps untouched.
	require.NoError(t, RunPostgresMigrations(ctx, pool))

	var secondApplied int64
	err = pool.QueryRow(ctx,
		`SELECT applied_at FROM schema_migrations WHERE filename = '001_loyalty_ledger.sql'`,
	).Scan(&secondApplied)
	require.NoError(t, err)
	assert.Equal(t, firstApplied, secondApplied)

	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&registered)
	require.NoError(t, err)
	assert.Equal(t, 3, registered)

	// The migrated schema is usable.
	_, err = pool.Exec(ctx, `
		INSERT INTO loyalty_ledger (id, customer_id, type, points, description, occurred_at, created_at)
		VALUES ('l1', 'c1', 'earn', 10, 'welcome bonus', 1000, 1000)
	`)
	require.NoError(t, err)
}
