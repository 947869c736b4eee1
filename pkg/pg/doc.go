// Package pg bootstraps the PostgreSQL pool shared by authstate.PostgresStore
// and the engine device store.
//
// It relies on github.com/jackc/pgx/v5 for connectivity and
// github.com/pressly/goose/v3 for schema migrations. Migrations are read from
// an fs.FS, so each package can embed and ship its own schema.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil { ... }
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, authstate.Migrations, authstate.MigrationsDir, cfg, log); err != nil {
//	    return err
//	}
//
//	store := authstate.NewPostgresStore(pool)
//	checks["postgres"] = pg.Healthcheck(pool)
//
// IsNotFoundError and IsDuplicateKeyError classify pgx errors.
package pg
