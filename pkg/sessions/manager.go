package sessions

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/connection"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/phone"
)

const (
	// DefaultShards is the number of registry shards used unless WithShards is given.
	DefaultShards        = 32
	// DefaultRepairTimeout bounds background cleanup and re-pairing.
	DefaultRepairTimeout = 2 * time.Minute
	resumeConcurrency    = 8
)

type entry struct {
	ctrl *connection.Controller
	gen  uint64
	// gone is set while Invalidate tears the session down and closed once
	// its partition is deleted. ctrl is nil when no controller was running.
	gone chan struct{}
}

// live reports whether the entry can be handed out.
func (e entry) live() bool {
	return e.gone == nil && !e.ctrl.State().Terminal()
}

// wait returns the channel closed when a non-live entry leaves the registry.
func (e entry) wait() <-chan struct{} {
	if e.gone != nil {
		return e.gone
	}
	return e.ctrl.Done()
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Manager owns every session controller of the process.
type Manager struct {
	store         authstate.Store
	engine        engine.Engine
	shards        []*shard
	ctrlOpts      []connection.Option
	logger        *slog.Logger
	repairTimeout time.Duration

	gen    atomic.Uint64
	closed atomic.Bool
	bgMu   sync.Mutex
	bg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithShards sets the number of registry shards. Values below one are ignored.
func WithShards(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithControllerOptions are applied to every controller the manager creates.
func WithControllerOptions(opts ...connection.Option) Option {
	return func(m *Manager) {
		m.ctrlOpts = append(m.ctrlOpts, opts...)
	}
}

// WithRepairTimeout bounds the background pairing request issued after an
// authentication failure.
func WithRepairTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.repairTimeout = d
		}
	}
}

// New creates an empty manager.
func New(store authstate.Store, eng engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		engine:        eng,
		shards:        newShards(DefaultShards),
		logger:        logger.Discard(),
		repairTimeout: DefaultRepairTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("sessions"))
	return m
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]entry)}
	}
	return shards
}

func (m *Manager) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

// GetOrCreate returns the controller for raw, creating an idle one if none
// exists. While a previous controller for the same id is terminating or
// being invalidated, GetOrCreate waits for it to be gone.
func (m *Manager) GetOrCreate(raw string) (*connection.Controller, error) {
	id := phone.Normalize(raw)
	if id == "" {
		return nil, ErrEmptyID
	}

	s := m.shardFor(id)
	for {
		s.mu.RLock()
		e, ok := s.entries[id]
		s.mu.RUnlock()
		if ok && e.live() {
			return e.ctrl, nil
		}

		ctrl, wait, err := m.create(s, id)
		if err != nil || ctrl != nil {
			return ctrl, err
		}
		<-wait
	}
}

// create installs a controller for id. When a terminating entry still holds
// the id, it returns the channel to wait on instead.
func (m *Manager) create(s *shard, id string) (*connection.Controller, <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		if e.live() {
			return e.ctrl, nil, nil
		}
		return nil, e.wait(), nil
	}
	if m.closed.Load() {
		return nil, nil, ErrClosed
	}

	gen := m.gen.Add(1)
	opts := slices.Concat(m.ctrlOpts, []connection.Option{
		connection.WithLogger(m.logger),
		connection.WithTerminalHook(func(o connection.Outcome) { m.onTerminal(id, gen, o) }),
	})
	ctrl := connection.New(id, m.store, m.engine, opts...)
	s.entries[id] = entry{ctrl: ctrl, gen: gen}

	m.logger.Debug("session created", logger.SessionID(phone.Mask(id)), slog.Uint64("generation", gen))
	return ctrl, nil, nil
}

// Get returns the live controller for raw, if any.
func (m *Manager) Get(raw string) (*connection.Controller, bool) {
	id := phone.Normalize(raw)
	if id == "" {
		return nil, false
	}
	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || e.gone != nil {
		return nil, false
	}
	return e.ctrl, true
}

// Status reports the state of the session for raw, if one is registered.
func (m *Manager) Status(raw string) (connection.Status, bool) {
	ctrl, ok := m.Get(raw)
	if !ok {
		return connection.Status{}, false
	}
	return ctrl.Status(), true
}

// Len returns the number of registered controllers, excluding sessions that
// are being invalidated.
func (m *Manager) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		for _, e := range s.entries {
			if e.gone == nil {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// Pair returns a pairing code for raw, or reports that it is already
// registered. A request racing a controller that has just terminated is
// retried once against its replacement.
func (m *Manager) Pair(ctx context.Context, raw string) (connection.PairResult, error) {
	for attempt := 0; ; attempt++ {
		ctrl, err := m.GetOrCreate(raw)
		if err != nil {
			return connection.PairResult{}, err
		}
		res, err := ctrl.Pair(ctx)
		if err == nil || attempt > 0 || !errors.Is(err, connection.ErrStopped) || ctx.Err() != nil {
			return res, err
		}
		select {
		case <-ctrl.Done():
		case <-ctx.Done():
			return connection.PairResult{}, ctx.Err()
		}
	}
}

// Invalidate stops the session's controller, deletes its persisted
// credentials and engine-side material, then removes it. The id stays
// reserved until the partition is gone, so a concurrent GetOrCreate never
// sees the old credentials. Invalidating an unknown id is a no-op.
func (m *Manager) Invalidate(ctx context.Context, raw string) error {
	id := phone.Normalize(raw)
	if id == "" {
		return ErrEmptyID
	}

	s := m.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && e.gone != nil {
		s.mu.Unlock()
		select {
		case <-e.gone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	gone := make(chan struct{})
	s.entries[id] = entry{ctrl: e.ctrl, gen: e.gen, gone: gone}
	s.mu.Unlock()

	if e.ctrl != nil {
		if err := e.ctrl.Invalidate(ctx); err != nil {
			m.finish(id, e.ctrl, gone)
			return err
		}
	}
	err := m.wipe(ctx, id, e.ctrl)
	m.release(id, gone)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "session invalidated", logger.SessionID(phone.Mask(id)))
	return nil
}

// finish completes an invalidation whose caller gave up before the
// controller exited.
func (m *Manager) finish(id string, ctrl *connection.Controller, gone chan struct{}) {
	m.bgMu.Lock()
	tracked := !m.closed.Load()
	if tracked {
		m.bg.Add(1)
	}
	m.bgMu.Unlock()

	go func() {
		if tracked {
			defer m.bg.Done()
		}
		defer m.release(id, gone)
		<-ctrl.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.repairTimeout)
		defer cancel()
		if err := m.wipe(ctx, id, ctrl); err != nil {
			m.logger.Error("failed to finish invalidation", logger.SessionID(phone.Mask(id)), logger.Error(err))
		}
	}()
}

// release drops the reservation made by Invalidate.
func (m *Manager) release(id string, gone chan struct{}) {
	s := m.shardFor(id)
	s.mu.Lock()
	if e, ok := s.entries[id]; ok && e.gone == gone {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	close(gone)
}

// wipe deletes the partition of id and purges the engine copy of the newest
// credentials: the bundle the stopped controller held, or the stored one.
func (m *Manager) wipe(ctx context.Context, id string, ctrl *connection.Controller) error {
	creds, err := m.store.Load(ctx, id)
	if err != nil && !errors.Is(err, authstate.ErrNotFound) {
		return err
	}
	if ctrl != nil {
		if o, ok := ctrl.Outcome(); ok && o.Creds != nil {
			creds = o.Creds
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	return m.purge(ctx, id, creds)
}

// Resume starts a controller for every registered session found in the
// store and returns how many were started.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	var started atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resumeConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			st, err := m.store.Load(gctx, id)
			if errors.Is(err, authstate.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !st.Registered {
				return nil
			}
			ctrl, err := m.GetOrCreate(id)
			if err != nil {
				return err
			}
			if err := ctrl.Start(); err != nil {
				return err
			}
			started.Add(1)
			return nil
		})
	}
	err = g.Wait()

	n := int(started.Load())
	m.logger.InfoContext(ctx, "sessions resumed", slog.Int("count", n), slog.Int("stored", len(ids)), logger.Error(err))
	return n, err
}

// Shutdown stops every controller in parallel, keeping persisted
// credentials, and waits for background re-pairing to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.bgMu.Lock()
	m.closed.Store(true)
	m.bgMu.Unlock()

	var entries []entry
	for _, s := range m.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.ctrl != nil {
				entries = append(entries, e)
			}
		}
		clear(s.entries)
		s.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error { return e.ctrl.Stop(gctx) })
	}
	err := g.Wait()

	bgDone := make(chan struct{})
	go func() {
		m.bg.Wait()
		close(bgDone)
	}()
	select {
	case <-bgDone:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	m.logger.Info("sessions stopped", slog.Int("count", len(entries)), logger.Error(err))
	return err
}

// owns reports whether generation gen still holds id and is not being
// invalidated.
func (m *Manager) owns(id string, gen uint64) bool {
	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return ok && e.gen == gen && e.gone == nil
}

// take removes the entry for id if it still belongs to generation gen and is
// not being invalidated.
func (m *Manager) take(id string, gen uint64) bool {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen || e.gone != nil {
		return false
	}
	delete(s.entries, id)
	return true
}

func (m *Manager) purge(ctx context.Context, id string, creds *authstate.State) error {
	p, ok := m.engine.(engine.Purger)
	if !ok || creds == nil {
		return nil
	}
	if err := p.Purge(ctx, id, creds); err != nil {
		return errors.Join(ErrPurgeFailed, err)
	}
	return nil
}

// onTerminal runs on the terminating controller's goroutine. The entry is
// removed only after cleanup, so GetOrCreate cannot hand out a replacement
// while the old partition still exists.
func (m *Manager) onTerminal(id string, gen uint64, o connection.Outcome) {
	if !m.owns(id, gen) {
		return
	}
	log := m.logger.With(logger.SessionID(phone.Mask(id)), logger.State(o.State.String()))

	wiped := o.State == connection.StateInvalidated || o.State == connection.StateFailed
	if wiped {
		ctx, cancel := context.WithTimeout(context.Background(), m.repairTimeout)
		// The controller already deleted the partition; repeat in case it failed.
		if err := m.store.Delete(ctx, id); err != nil {
			log.Error("failed to delete credentials", logger.Error(err))
		}
		if err := m.purge(ctx, id, o.Creds); err != nil {
			log.Error("failed to purge engine state", logger.Error(err))
		}
		cancel()
	}

	if !m.take(id, gen) {
		return
	}
	if !wiped {
		log.Info("session removed")
		return
	}
	log.Warn("session removed", logger.Error(o.Err))
	if o.State == connection.StateInvalidated && errors.Is(o.Err, connection.ErrAuthenticationFailure) {
		m.repair(id)
	}
}

// repair recreates a session whose credentials were rejected and requests a
// fresh pairing code for it.
func (m *Manager) repair(id string) {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()
	if m.closed.Load() {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.repairTimeout)
		defer cancel()

		log := m.logger.With(logger.SessionID(phone.Mask(id)))
		res, err := m.Pair(ctx, id)
		switch {
		case err != nil:
			log.Error("re-pairing failed", logger.Error(err))
		case res.Registered:
			log.Info("session registered again")
		default:
			log.Info("re-pairing code issued", slog.String("pairing_code", res.Code))
		}
	}()
}
