package whatsmeow

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogAdapter routes whatsmeow's printf-style logging into slog.
type slogAdapter struct {
	log *slog.Logger
}

func newLogAdapter(log *slog.Logger) waLog.Logger {
	return &slogAdapter{log: log}
}

func (a *slogAdapter) logf(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !a.log.Enabled(ctx, level) {
		return
	}
	a.log.Log(ctx, level, fmt.Sprintf(msg, args...))
}

func (a *slogAdapter) Debugf(msg string, args ...any) { a.logf(slog.LevelDebug, msg, args) }
func (a *slogAdapter) Infof(msg string, args ...any)  { a.logf(slog.LevelInfo, msg, args) }
func (a *slogAdapter) Warnf(msg string, args ...any)  { a.logf(slog.LevelWarn, msg, args) }
func (a *slogAdapter) Errorf(msg string, args ...any) { a.logf(slog.LevelError, msg, args) }

func (a *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{log: a.log.With(slog.String("module", module))}
}
