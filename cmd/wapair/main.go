// Command wapair runs the session manager and its HTTP control surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrymomot/wapair/pkg/api"
	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/config"
	"github.com/dmitrymomot/wapair/pkg/connection"
	"github.com/dmitrymomot/wapair/pkg/dispatcher"
	"github.com/dmitrymomot/wapair/pkg/engine/whatsmeow"
	"github.com/dmitrymomot/wapair/pkg/httpserver"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/pg"
	"github.com/dmitrymomot/wapair/pkg/redis"
	"github.com/dmitrymomot/wapair/pkg/requestid"
	"github.com/dmitrymomot/wapair/pkg/secrets"
	"github.com/dmitrymomot/wapair/pkg/sessions"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := newLogger(cfg, cfg.LogLevel)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	checks := map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)}

	store, closeStore, err := openStore(ctx, cfg, pool, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	engineOpts := []whatsmeow.Option{
		whatsmeow.WithLogger(newLogger(cfg, cfg.Engine.LogLevel).With(logger.Component("engine"))),
		whatsmeow.WithDisplayName(cfg.Engine.ClientName),
	}
	if cfg.Engine.LogEvents {
		engineOpts = append(engineOpts, whatsmeow.WithEventLogging())
	}
	eng, err := whatsmeow.New(ctx, db, engineOpts...)
	if err != nil {
		return err
	}
	checks["engine"] = eng.Ping

	manager := sessions.New(store, eng,
		sessions.WithShards(cfg.Session.Shards),
		sessions.WithLogger(log),
		sessions.WithRepairTimeout(cfg.Session.RepairTimeout),
		sessions.WithControllerOptions(
			connection.WithPolicy(cfg.Session.policy()),
			connection.WithDispatcher(dispatcher.New(cfg.AutoReply.rule(), dispatcher.WithLogger(log))),
		),
	)

	if cfg.Session.ResumeOnStart {
		// Sessions that failed to resume start again on their next /pair.
		if _, err := manager.Resume(ctx); err != nil {
			log.WarnContext(ctx, "resume incomplete", logger.Error(err))
		}
	}

	router := api.New(manager,
		api.WithLogger(log),
		api.WithChecks(checks),
		api.WithPairTimeout(cfg.Session.PairTimeout),
	)

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(manager.Shutdown),
	)
	return srv.Run(ctx, router)
}

func newLogger(cfg Config, level string) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.AppEnv, cfg.ServiceName),
		logger.WithLevelName(level),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}

// openStore builds the credential store selected by AUTH_STORE, wrapped in
// EncryptedStore when AUTH_ENCRYPTION_KEY is set.
func openStore(ctx context.Context, cfg Config, pool *pgxpool.Pool, log *slog.Logger, checks map[string]httpserver.Check) (authstate.Store, func(), error) {
	var (
		store   authstate.Store
		cleanup = func() {}
	)

	switch cfg.Auth.Store {
	case storeFile:
		fileStore, err := authstate.NewFileStore(cfg.Auth.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = fileStore

	case storeRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = redis.Healthcheck(client)
		store = authstate.NewRedisStore(client, cfg.Auth.RedisPrefix)
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", logger.Error(err))
			}
		}

	case storePostgres:
		if err := pg.Migrate(ctx, pool, authstate.Migrations, authstate.MigrationsDir, cfg.Postgres, log); err != nil {
			return nil, nil, err
		}
		store = authstate.NewPostgresStore(pool)

	default:
		return nil, nil, errors.New("unknown auth store " + cfg.Auth.Store)
	}

	if cfg.Auth.EncryptionKey != "" {
		key, err := secrets.ParseKey(cfg.Auth.EncryptionKey)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		c, err := secrets.New(key)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		store = authstate.NewEncryptedStore(store, c)
	}

	log.Info("auth store ready", slog.String("backend", cfg.Auth.Store), slog.Bool("encrypted", cfg.Auth.EncryptionKey != ""))
	return store, cleanup, nil
}
