package sessions_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/connection"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/engine/enginetest"
	"github.com/dmitrymomot/wapair/pkg/sessions"
)

const (
	rawID   = "+62 812-3456-789"
	id      = "628123456789"
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newManager(t *testing.T, store authstate.Store, eng engine.Engine, opts ...sessions.Option) *sessions.Manager {
	t.Helper()
	base := []sessions.Option{
		sessions.WithShards(4),
		sessions.WithControllerOptions(connection.WithPolicy(connection.Policy{
			ReconnectDelay:  5 * time.Millisecond,
			MaxErrorRetries: 1,
		})),
	}
	m := sessions.New(store, eng, append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func saveRegistered(t *testing.T, store authstate.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.Save(context.Background(), id, &authstate.State{Registered: true, Creds: []byte("dev-" + id)}))
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	t.Parallel()

	t.Run("one controller per normalized id", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, authstate.NewMemoryStore(), enginetest.New())

		var wg sync.WaitGroup
		got := make([]*connection.Controller, 32)
		for i := range got {
			wg.Add(1)
			go func() {
				defer wg.Done()
				raw := id
				if i%2 == 0 {
					raw = rawID
				}
				c, err := m.GetOrCreate(raw)
				assert.NoError(t, err)
				got[i] = c
			}()
		}
		wg.Wait()

		for _, c := range got {
			assert.Same(t, got[0], c)
		}
		assert.Equal(t, 1, m.Len())
		assert.Equal(t, id, got[0].ID())
		assert.Equal(t, connection.StateIdle, got[0].State())
	})

	t.Run("different ids get different controllers", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, authstate.NewMemoryStore(), enginetest.New())

		a, err := m.GetOrCreate("628111111111")
		require.NoError(t, err)
		b, err := m.GetOrCreate("628222222222")
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, authstate.NewMemoryStore(), enginetest.New())

		_, err := m.GetOrCreate("+ ( ) -")
		require.ErrorIs(t, err, sessions.ErrEmptyID)
		_, ok := m.Get("")
		assert.False(t, ok)
	})
}

func TestManager_Pair(t *testing.T) {
	t.Parallel()

	t.Run("returns grouped code", func(t *testing.T) {
		t.Parallel()
		eng := enginetest.New(enginetest.WithPairingCode("QWER7890"))
		m := newManager(t, authstate.NewMemoryStore(), eng)

		res, err := m.Pair(context.Background(), rawID)
		require.NoError(t, err)
		assert.Equal(t, "QWER-7890", res.Code)

		c, ok := m.Get(id)
		require.True(t, ok)
		assert.Equal(t, connection.StateAwaitingPairing, c.State())
	})

	t.Run("invalid identifier removes the session", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, authstate.NewMemoryStore(), enginetest.New())

		_, err := m.Pair(context.Background(), "123")
		require.ErrorIs(t, err, connection.ErrInvalidIdentifier)
		require.Eventually(t, func() bool { return m.Len() == 0 }, waitFor, tick)
	})
}

func TestManager_Invalidate(t *testing.T) {
	t.Parallel()

	t.Run("stops removes and deletes", func(t *testing.T) {
		t.Parallel()
		store := authstate.NewMemoryStore()
		saveRegistered(t, store, id)
		eng := enginetest.New()
		m := newManager(t, store, eng)

		old, err := m.GetOrCreate(rawID)
		require.NoError(t, err)
		require.NoError(t, old.Start())
		conn := eng.WaitConn(t, id, 1)

		require.NoError(t, m.Invalidate(context.Background(), rawID))
		assert.Equal(t, connection.StateInvalidated, old.State())
		assert.True(t, conn.Closed())
		assert.False(t, store.Has(id))
		assert.Equal(t, []string{id}, eng.Purged())
		assert.Zero(t, m.Len())

		fresh, err := m.GetOrCreate(rawID)
		require.NoError(t, err)
		assert.NotSame(t, old, fresh)
		assert.Equal(t, connection.StateIdle, fresh.State())

		require.NoError(t, fresh.Start())
		assert.False(t, eng.WaitConn(t, id, 2).Registered(), "fresh session starts without credentials")
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, authstate.NewMemoryStore(), enginetest.New())

		require.NoError(t, m.Invalidate(context.Background(), id))
		require.NoError(t, m.Invalidate(context.Background(), id))
		require.ErrorIs(t, m.Invalidate(context.Background(), ""), sessions.ErrEmptyID)
	})

	t.Run("deletes stored credentials without a live controller", func(t *testing.T) {
		t.Parallel()
		store := authstate.NewMemoryStore()
		saveRegistered(t, store, id)
		eng := enginetest.New()
		m := newManager(t, store, eng)

		require.NoError(t, m.Invalidate(context.Background(), id))
		assert.False(t, store.Has(id))
		assert.Equal(t, []string{id}, eng.Purged())
		assert.Empty(t, eng.Conns())
	})
}

// gatedStore blocks the first Save after arming until release is closed.
// The write itself ignores cancellation, like a file rename in flight.
type gatedStore struct {
	*authstate.MemoryStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: authstate.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) Save(ctx context.Context, id string, s *authstate.State) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.Save(context.WithoutCancel(ctx), id, s)
}

func TestManager_InvalidateHoldsIDUntilDeleted(t *testing.T) {
	t.Parallel()

	store := newGatedStore()
	saveRegistered(t, store, id)
	eng := enginetest.New()
	m := newManager(t, store, eng)

	old, err := m.GetOrCreate(id)
	require.NoError(t, err)
	require.NoError(t, old.Start())
	first := eng.WaitConn(t, id, 1)
	first.Open()
	require.Eventually(t, func() bool { return old.State() == connection.StateOpen }, waitFor, tick)

	// Park the controller inside a credentials write.
	store.armed.Store(true)
	first.UpdateCreds(&authstate.State{Registered: true, Creds: []byte("rotated")})
	select {
	case <-store.entered:
	case <-time.After(waitFor):
		t.Fatal("credentials were not persisted")
	}

	invalidated := make(chan error, 1)
	go func() { invalidated <- m.Invalidate(context.Background(), id) }()
	require.Eventually(t, func() bool {
		_, ok := m.Get(id)
		return !ok
	}, waitFor, tick)

	created := make(chan *connection.Controller, 1)
	go func() {
		c, err := m.GetOrCreate(id)
		assert.NoError(t, err)
		created <- c
	}()

	select {
	case c := <-created:
		t.Fatalf("controller %p created while the previous one was still running", c)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, connection.StateOpen, old.State())
	assert.False(t, first.Closed())
	assert.Len(t, eng.ConnsFor(id), 1)

	close(store.release)
	select {
	case err := <-invalidated:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("invalidate did not return")
	}

	var fresh *connection.Controller
	select {
	case fresh = <-created:
	case <-time.After(waitFor):
		t.Fatal("GetOrCreate did not return")
	}
	assert.NotSame(t, old, fresh)
	assert.Equal(t, connection.StateInvalidated, old.State())
	assert.True(t, first.Closed())
	assert.False(t, store.Has(id), "credentials written during teardown are deleted")
	assert.Equal(t, []string{id}, eng.Purged())

	require.NoError(t, fresh.Start())
	second := eng.WaitConn(t, id, 2)
	assert.False(t, second.Registered())
	assert.Len(t, eng.ConnsFor(id), 2)
}

func TestManager_AuthFailureRepairs(t *testing.T) {
	t.Parallel()

	store := authstate.NewMemoryStore()
	saveRegistered(t, store, id)
	eng := enginetest.New()
	m := newManager(t, store, eng)

	old, err := m.GetOrCreate(id)
	require.NoError(t, err)
	require.NoError(t, old.Start())

	first := eng.WaitConn(t, id, 1)
	first.Open()
	require.Eventually(t, func() bool { return old.State() == connection.StateOpen }, waitFor, tick)
	first.Disconnect(engine.StatusLoggedOut)

	<-old.Done()
	assert.Equal(t, connection.StateInvalidated, old.State())

	second := eng.WaitConn(t, id, 2)
	assert.False(t, second.Registered())
	require.Eventually(t, func() bool { return len(second.PairingRequests()) == 1 }, waitFor, tick)

	fresh, ok := m.Get(id)
	require.True(t, ok)
	assert.NotSame(t, old, fresh)
	require.Eventually(t, func() bool { return fresh.State() == connection.StateAwaitingPairing }, waitFor, tick)

	assert.False(t, store.Has(id))
	assert.Contains(t, eng.Purged(), id)

	// Exactly one re-pairing attempt.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, eng.ConnsFor(id), 2)
	assert.Len(t, second.PairingRequests(), 1)
}

func TestManager_FailedSessionIsNotRepaired(t *testing.T) {
	t.Parallel()

	store := authstate.NewMemoryStore()
	saveRegistered(t, store, id)
	eng := enginetest.New()
	m := newManager(t, store, eng)

	c, err := m.GetOrCreate(id)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	boom := errors.New("stream error")
	eng.WaitConn(t, id, 1).Fail(boom)
	eng.WaitConn(t, id, 2).Fail(boom)

	<-c.Done()
	assert.Equal(t, connection.StateFailed, c.State())
	require.Eventually(t, func() bool { return m.Len() == 0 }, waitFor, tick)
	assert.False(t, store.Has(id))

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, eng.Conns(), 2)
}

func TestManager_Resume(t *testing.T) {
	t.Parallel()

	store := authstate.NewMemoryStore()
	saveRegistered(t, store, "628111111111", "628222222222")
	require.NoError(t, store.Save(context.Background(), "628333333333", authstate.New()))
	eng := enginetest.New(enginetest.OnConnect(func(c *enginetest.Conn) { c.Open() }))
	m := newManager(t, store, eng)

	n, err := m.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())

	for _, id := range []string{"628111111111", "628222222222"} {
		c, ok := m.Get(id)
		require.True(t, ok, id)
		require.Eventually(t, func() bool { return c.State() == connection.StateOpen }, waitFor, tick)
		assert.Equal(t, []byte("dev-"+id), eng.WaitConn(t, id, 1).State.Creds)
	}
	_, ok := m.Get("628333333333")
	assert.False(t, ok)
}

func TestManager_Shutdown(t *testing.T) {
	t.Parallel()

	store := authstate.NewMemoryStore()
	ids := []string{"628111111111", "628222222222", "628333333333"}
	saveRegistered(t, store, ids...)
	eng := enginetest.New()
	m := newManager(t, store, eng)

	_, err := m.Resume(context.Background())
	require.NoError(t, err)
	for _, id := range ids {
		eng.WaitConn(t, id, 1)
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Zero(t, m.Len())
	for _, c := range eng.Conns() {
		assert.True(t, c.Closed())
	}
	for _, id := range ids {
		assert.True(t, store.Has(id), "credentials are kept on shutdown")
	}

	_, err = m.GetOrCreate(ids[0])
	require.ErrorIs(t, err, sessions.ErrClosed)
}
