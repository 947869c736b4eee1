// Package logger builds the service's *slog.Logger.
//
// New returns a JSON or text slog logger configured by functional options.
// Environment presets (WithDevelopment, WithStaging, WithProduction, or
// WithEnvironment for an APP_ENV value) pick a level and format and tag every
// record with service and env.
//
// Records also pick up attributes from their context: those stored with
// ContextWith, and those produced by ContextExtractor callbacks such as
// requestid.LoggerExtractor.
//
// attr.go holds constructors for the attribute keys used across the code
// base (SessionID, State, Attempt, StatusCode, Error, Component, ...). Error
// returns an empty attribute for a nil error, which slog drops, so
//
//	log.Info("stopped", logger.Error(err))
//
// needs no nil check.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.AppEnv, "wapair"),
//	    logger.WithLevelName(cfg.LogLevel),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	ctx = logger.ContextWith(ctx, logger.SessionID(id))
//	log.InfoContext(ctx, "pairing code issued")
//
// Discard returns a logger that drops everything; packages use it as their
// default when no logger is supplied.
package logger
