// Package httpserver runs the control-surface HTTP server with graceful
// shutdown, lifecycle hooks and health-check handlers.
//
// Run binds the listener, calls the start hooks with the bound address and
// serves until the context is cancelled, SIGINT/SIGTERM arrives or Shutdown
// is called. Shutdown drains in-flight requests and then runs the stop hooks
// (for example stopping all sessions) inside the same deadline.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log, map[string]httpserver.Check{
//	    "redis": redis.Healthcheck(client),
//	}))
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//	    httpserver.WithLogger(log),
//	    httpserver.WithStopHook(manager.Shutdown),
//	)
//	if err := srv.Run(ctx, r); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run wraps listen errors with ErrStart, while Shutdown wraps server and hook
// errors with ErrShutdown. Use errors.Is to distinguish them.
package httpserver
