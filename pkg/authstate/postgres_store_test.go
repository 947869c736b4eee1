package authstate_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/pg"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}
	ctx := context.Background()
	cfg := pg.Config{ConnectionString: url, RetryAttempts: 1}

	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, authstate.Migrations, authstate.MigrationsDir, cfg, slog.Default()))

	storeContract(t, func(t *testing.T) authstate.Store {
		_, err := pool.Exec(ctx, `TRUNCATE auth_states`)
		require.NoError(t, err)
		return authstate.NewPostgresStore(pool)
	})
}
