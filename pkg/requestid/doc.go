// Package requestid attaches a correlation id to every control-surface
// request.
//
// Middleware reuses a well-formed client X-Request-ID header or generates a
// UUIDv7, stores it in the request context and echoes it back. Pair it with
// LoggerExtractor so every log line written with the request context carries
// a request_id attribute.
//
// # Usage
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
