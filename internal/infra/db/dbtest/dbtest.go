//go:build integration

// Package dbtest starts a migrated Postgres container for integration tests.
// Run with: go test -tags integration ./internal/...
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/db"
	"github.com/kg46sp8kps-web/gestima-sub002/migrations"
)

// Pool returns a pool on a fresh database with every migration applied.
// The container is removed when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("gestima_test"),
		tcPostgres.WithUsername("gestima"),
		tcPostgres.WithPassword("gestima"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(dsn, migrations.FS, "."))

	pool, err := db.Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// InsertPart adds a bare part row and returns its id.
func InsertPart(t *testing.T, pool *pgxpool.Pool, number string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO parts (number, name) VALUES ($1, $1) RETURNING id`, number).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertWorkCenter adds a work center with the given labor rate and rate stamp.
func InsertWorkCenter(t *testing.T, pool *pgxpool.Pool, code, labor string, ratesChangedAt time.Time) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO work_centers (code, name, labor_rate, rates_changed_at)
		VALUES ($1, $1, $2::numeric, $3)
		RETURNING id
	`, code, labor, ratesChangedAt).Scan(&id)
	require.NoError(t, err)
	return id
}
