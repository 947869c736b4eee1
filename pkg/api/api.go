package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/wapair/pkg/connection"
	"github.com/dmitrymomot/wapair/pkg/httpserver"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/phone"
	"github.com/dmitrymomot/wapair/pkg/requestid"
	"github.com/dmitrymomot/wapair/pkg/sessions"
)

// DefaultPairTimeout bounds a single /pair request.
const DefaultPairTimeout = 55 * time.Second

// Sessions is the part of sessions.Manager the API drives.
type Sessions interface {
	Pair(ctx context.Context, raw string) (connection.PairResult, error)
	Invalidate(ctx context.Context, raw string) error
	Status(raw string) (connection.Status, bool)
}

var _ Sessions = (*sessions.Manager)(nil)

type handler struct {
	sessions    Sessions
	log         *slog.Logger
	checks      map[string]httpserver.Check
	pairTimeout time.Duration
}

// Option configures the router.
type Option func(*handler)

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithChecks registers readiness checks served on /readyz.
func WithChecks(checks map[string]httpserver.Check) Option {
	return func(h *handler) {
		if h.checks == nil {
			h.checks = make(map[string]httpserver.Check, len(checks))
		}
		for name, c := range checks {
			h.checks[name] = c
		}
	}
}

// WithPairTimeout bounds how long /pair waits for a code.
func WithPairTimeout(d time.Duration) Option {
	return func(h *handler) {
		if d > 0 {
			h.pairTimeout = d
		}
	}
}

// New builds the HTTP router.
func New(s Sessions, opts ...Option) http.Handler {
	h := &handler{
		sessions:    s,
		log:         logger.Discard(),
		pairTimeout: DefaultPairTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(h.log, h.checks))

	r.Get("/pair", handle(h.log, h.pair))
	r.Get("/sessions/{phoneNumber}", handle(h.log, h.status))
	r.Delete("/sessions/{phoneNumber}", handle(h.log, h.invalidate))

	return r
}

type pairResponse struct {
	PairingCode string `json:"pairingCode,omitempty"`
	Registered  bool   `json:"registered,omitempty"`
}

func (h *handler) pair(r *http.Request) Response {
	raw := r.URL.Query().Get("phoneNumber")
	if raw == "" {
		return Error(http.StatusBadRequest, ErrPhoneNumberRequired)
	}

	ctx := logger.ContextWith(r.Context(), logger.SessionID(phone.Mask(phone.Normalize(raw))))
	ctx, cancel := context.WithTimeout(ctx, h.pairTimeout)
	defer cancel()

	res, err := h.sessions.Pair(ctx, raw)
	if err != nil {
		if errors.Is(err, sessions.ErrEmptyID) {
			return Error(http.StatusBadRequest, ErrPhoneNumberRequired)
		}
		h.log.ErrorContext(ctx, "pairing failed", logger.Error(err))
		return Error(http.StatusInternalServerError, err)
	}

	if res.Registered {
		return JSON(http.StatusOK, pairResponse{Registered: true})
	}
	return JSON(http.StatusOK, pairResponse{PairingCode: res.Code})
}

type statusResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	Attempt   int    `json:"attempt"`
	LastError string `json:"lastError,omitempty"`
}

func (h *handler) status(r *http.Request) Response {
	st, ok := h.sessions.Status(chi.URLParam(r, "phoneNumber"))
	if !ok {
		return Error(http.StatusNotFound, ErrSessionNotFound)
	}
	resp := statusResponse{
		SessionID: st.SessionID,
		State:     st.State.String(),
		Attempt:   st.Attempt,
	}
	if st.LastError != nil {
		resp.LastError = message(st.LastError)
	}
	return JSON(http.StatusOK, resp)
}

func (h *handler) invalidate(r *http.Request) Response {
	raw := chi.URLParam(r, "phoneNumber")
	ctx := logger.ContextWith(r.Context(), logger.SessionID(phone.Mask(phone.Normalize(raw))))

	err := h.sessions.Invalidate(ctx, raw)
	switch {
	case err == nil:
		return Empty(http.StatusNoContent)
	case errors.Is(err, sessions.ErrEmptyID):
		return Error(http.StatusBadRequest, ErrPhoneNumberRequired)
	default:
		h.log.ErrorContext(ctx, "invalidate failed", logger.Error(err))
		return Error(http.StatusInternalServerError, err)
	}
}
