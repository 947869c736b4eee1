package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json at info by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("session open", logger.SessionID("628123456789"))
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "session open", entry["msg"])
		assert.Equal(t, "628123456789", entry["session_id"])
	})

	t.Run("last format wins", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithJSONFormatter(), logger.WithTextFormatter()).Info("hello")
		assert.True(t, strings.HasPrefix(buf.String(), "time="))
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithAttr(logger.Component("sessions"))).Info("msg")
		assert.Equal(t, "sessions", decode(t, buf)["component"])
	})

	t.Run("context extractors", func(t *testing.T) {
		t.Parallel()
		type key struct{}
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
				v, ok := ctx.Value(key{}).(string)
				return slog.String("request_id", v), ok
			}),
		)
		log.InfoContext(context.WithValue(context.Background(), key{}, "req-1"), "msg")
		assert.Equal(t, "req-1", decode(t, buf)["request_id"])
	})

	t.Run("unknown format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestEnvironmentPresets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantEnv   string
		wantDebug bool
		wantJSON  bool
	}{
		{"development", "development", true, false},
		{"", "development", true, false},
		{"staging", "staging", false, true},
		{"prod", "production", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.wantEnv+"/"+tt.env, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := logger.New(logger.WithEnvironment(tt.env, "wapair"), logger.WithOutput(buf))

			assert.Equal(t, tt.wantDebug, log.Enabled(context.Background(), slog.LevelDebug))
			log.Warn("msg")
			if tt.wantJSON {
				entry := decode(t, buf)
				assert.Equal(t, "wapair", entry["service"])
				assert.Equal(t, tt.wantEnv, entry["env"])
				return
			}
			assert.Contains(t, buf.String(), "service=wapair")
			assert.Contains(t, buf.String(), "env="+tt.wantEnv)
		})
	}

	t.Run("empty service keeps defaults", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithDevelopment(""), logger.WithOutput(buf)).Info("msg")
		entry := decode(t, buf)
		assert.NotContains(t, entry, "service")
	})
}

func TestLevels(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		" warn ": slog.LevelWarn,
		"error":  slog.LevelError,
	} {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := logger.ParseLevel("loud")
	assert.Error(t, err)

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithEnvironment("development", "wapair"), logger.WithLevelName("warn"), logger.WithOutput(buf))
	log.Info("hidden")
	assert.Empty(t, buf.String(), "explicit level overrides the preset")
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.NotPanics(t, func() { logger.New(logger.WithLevelName("")) })
	assert.Panics(t, func() { logger.New(logger.WithLevelName("loud")) })
	assert.False(t, logger.New(logger.WithLevel(slog.LevelError)).Enabled(context.Background(), slog.LevelWarn))
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	assert.False(t, logger.Discard().Enabled(context.Background(), slog.LevelError))
}

// Not parallel: replaces the process-wide default logger.
func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, buf)["msg"])
}
