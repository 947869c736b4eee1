package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/httpserver"
)

func startServer(t *testing.T, opts ...httpserver.Option) (*httpserver.Server, string, <-chan error) {
	t.Helper()
	bound := make(chan string, 1)
	srv := httpserver.New(append([]httpserver.Option{
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(time.Second),
		httpserver.WithStartHook(func(_ context.Context, addr string) { bound <- addr }),
	}, opts...)...)

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(context.Background(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	select {
	case addr := <-bound:
		return srv, addr, done
	case err := <-done:
		t.Fatalf("server did not start: %v", err)
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	return nil, "", nil
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
		return nil
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	srv, addr, done := startServer(t)

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, waitRun(t, done))
	require.NoError(t, srv.Shutdown(context.Background()), "repeated shutdown")
}

func TestServer_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	bound := make(chan string, 1)
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithStartHook(func(_ context.Context, addr string) { bound <- addr }),
	)
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()
	<-bound

	cancel()
	require.NoError(t, waitRun(t, done))
}

func TestServer_StopHooks(t *testing.T) {
	t.Parallel()

	t.Run("run in order", func(t *testing.T) {
		t.Parallel()
		var order []int
		srv, _, done := startServer(t,
			httpserver.WithStopHook(func(context.Context) error { order = append(order, 1); return nil }),
			httpserver.WithStopHook(func(context.Context) error { order = append(order, 2); return nil }),
		)

		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, waitRun(t, done))
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("errors are reported", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("sessions did not stop")
		var calls atomic.Int32
		srv, _, done := startServer(t,
			httpserver.WithStopHook(func(context.Context) error { calls.Add(1); return boom }),
		)

		err := srv.Shutdown(context.Background())
		require.ErrorIs(t, err, httpserver.ErrShutdown)
		require.ErrorIs(t, err, boom)
		require.ErrorIs(t, waitRun(t, done), boom)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestServer_StartErrors(t *testing.T) {
	t.Parallel()

	t.Run("bad address", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.WithAddr(":invalid"))
		err := srv.Run(context.Background(), nil)
		require.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()
		srv, _, done := startServer(t)
		err := srv.Run(context.Background(), nil)
		require.ErrorIs(t, err, httpserver.ErrStart)
		require.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

		require.NoError(t, srv.Shutdown(context.Background()))
		require.NoError(t, waitRun(t, done))
	})
}

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":3000", httpserver.Config{Port: 3000}.Addr())
	assert.Equal(t, "127.0.0.1:8080", httpserver.Config{Host: "127.0.0.1", Port: 8080}.Addr())
	assert.Empty(t, httpserver.Config{}.Addr())
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func()
	}{
		{"addr", func() { httpserver.WithAddr("") }},
		{"read", func() { httpserver.WithReadTimeout(-time.Second) }},
		{"write", func() { httpserver.WithWriteTimeout(-time.Second) }},
		{"idle", func() { httpserver.WithIdleTimeout(-time.Second) }},
		{"shutdown", func() { httpserver.WithShutdownTimeout(0) }},
		{"start hook", func() { httpserver.WithStartHook(nil) }},
		{"stop hook", func() { httpserver.WithStopHook(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, tt.fn)
		})
	}
}

func TestHealthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h := httpserver.ReadinessHandler(nil, map[string]httpserver.Check{
			"store": func(context.Context) error { return nil },
		})
		h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h := httpserver.ReadinessHandler(nil, map[string]httpserver.Check{
			"store":  func(context.Context) error { return nil },
			"engine": func(context.Context) error { return errors.New("db down") },
		})
		h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body struct {
			Status string            `json:"status"`
			Failed map[string]string `json:"failed"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, map[string]string{"engine": "db down"}, body.Failed)
	})
}
