// Package redis connects to the Redis server used by authstate.RedisStore.
//
// It wraps github.com/redis/go-redis/v9 with a retrying Connect and a
// readiness check. Config fields are populated from the environment via
// github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil { ... }
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := authstate.NewRedisStore(client, "wapair:auth:")
//	checks["redis"] = redis.Healthcheck(client)
//
// # Errors
//
// Failures are reported as ErrInvalidURL, ErrNotReady
// or ErrHealthcheckFailed joined with the underlying go-redis error.
package redis
