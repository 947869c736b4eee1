package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestSessionID(t *testing.T) {
	attr := logger.SessionID("628123456789")
	require.Equal(t, "session_id", attr.Key)
	assert.Equal(t, "628123456789", attr.Value.String())

	empty := logger.SessionID("")
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestState(t *testing.T) {
	attr := logger.State("open")
	require.Equal(t, "state", attr.Key)
	assert.Equal(t, "open", attr.Value.Any())
}

func TestAttempt(t *testing.T) {
	attr := logger.Attempt(3)
	require.Equal(t, "attempt", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestStatusCode(t *testing.T) {
	attr := logger.StatusCode(401)
	require.Equal(t, "status_code", attr.Key)
	assert.Equal(t, int64(401), attr.Value.Int64())
}

func TestRequestID(t *testing.T) {
	attr := logger.RequestID("abc")
	require.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.Any())
}
