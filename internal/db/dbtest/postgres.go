// Package dbtest opens databases for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/config"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

// lockKey serializes tests from different packages sharing one database.
const lockKey = 7_202_611

// Postgres connects to the database described by TEST_DB_HOST, TEST_DB_PORT,
// TEST_DB_USER, TEST_DB_PASSWORD, TEST_DB_NAME and TEST_DB_SSLMODE, applies the
// migrations and empties every table. The test is skipped when TEST_DB_HOST is unset.
func Postgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST is not set")
	}

	cfg, err := env.ParseAsWithOptions[config.PostgresConfig](env.Options{Prefix: "TEST_DB_"})
	require.NoError(t, err)
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	cfg.MaxConns, cfg.MinConns = 4, 0
	cfg.Migrate = true

	ctx := context.Background()
	pg, err := db.NewPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	lock, err := pg.Pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = lock.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = lock.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
		lock.Release()
	})

	_, err = pg.DB.ExecContext(ctx,
		`TRUNCATE order_items, orders, deliveries, category_items, categories, items, members CASCADE`)
	require.NoError(t, err)
	return pg.DB
}
