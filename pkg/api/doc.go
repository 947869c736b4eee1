// Package api exposes the session manager over HTTP.
//
// Routes:
//
//	GET    /pair?phoneNumber=<raw>   issue a pairing code, or report the session as registered
//	GET    /sessions/{phoneNumber}   current controller state
//	DELETE /sessions/{phoneNumber}   invalidate the session and wipe its credentials
//	GET    /healthz                  liveness
//	GET    /readyz                   readiness of the configured checks
//
// Every response body is JSON. Errors are rendered as {"error":"<message>"}.
//
// # Usage
//
//	router := api.New(manager,
//	    api.WithLogger(log),
//	    api.WithChecks(map[string]httpserver.Check{"store": pg.Healthcheck(pool)}),
//	)
//	srv.Run(ctx, router)
package api
