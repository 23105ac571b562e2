//go:build integration

package databasetest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"snapdocs/internal/database"
)

// StartPostgres runs a throwaway Postgres container with all migrations applied.
// The container and pool are released when the test ends.
func StartPostgres(ctx context.Context, t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("snapdocs-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(connStr))

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)

	return dbpool, connStr
}
