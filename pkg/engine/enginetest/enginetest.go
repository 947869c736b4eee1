// Package enginetest provides a scripted, in-memory engine.Engine.
//
// Tests drive connections by emitting events on the Conn returned for each
// Connect call and inspect pairing requests, sent messages and purges.
package enginetest

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
)

const eventBuffer = 256

// Engine records every connection it opens.
type Engine struct {
	mu          sync.Mutex
	conns       []*Conn
	connectErr  error
	pairingCode string
	pairingErr  error
	purged      []string
	onConnect   func(*Conn)
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Purger = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithPairingCode sets the raw code returned by RequestPairingCode.
func WithPairingCode(code string) Option {
	return func(e *Engine) { e.pairingCode = code }
}

// WithPairingError makes RequestPairingCode fail.
func WithPairingError(err error) Option {
	return func(e *Engine) { e.pairingErr = err }
}

// WithConnectError makes Connect fail.
func WithConnectError(err error) Option {
	return func(e *Engine) { e.connectErr = err }
}

// OnConnect registers a callback run for every new connection before Connect
// returns. It is handy for auto-opening registered sessions.
func OnConnect(fn func(*Conn)) Option {
	return func(e *Engine) { e.onConnect = fn }
}

// New returns an engine that issues pairing code "ABCD1234" by default.
func New(opts ...Option) *Engine {
	e := &Engine{pairingCode: "ABCD1234"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Connect(ctx context.Context, id string, state *authstate.State) (engine.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.connectErr != nil {
		err := e.connectErr
		e.mu.Unlock()
		return nil, err
	}
	c := &Conn{
		ID:          id,
		State:       state.Clone(),
		Seq:         len(e.conns) + 1,
		events:      make(chan engine.Event, eventBuffer),
		pairingCode: e.pairingCode,
		pairingErr:  e.pairingErr,
	}
	e.conns = append(e.conns, c)
	hook := e.onConnect
	e.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return c, nil
}

func (e *Engine) Purge(ctx context.Context, id string, state *authstate.State) error {
	e.mu.Lock()
	e.purged = append(e.purged, id)
	e.mu.Unlock()
	return nil
}

// SetConnectError changes the Connect outcome for later calls.
func (e *Engine) SetConnectError(err error) {
	e.mu.Lock()
	e.connectErr = err
	e.mu.Unlock()
}

// SetPairing changes the pairing outcome for connections opened afterwards.
func (e *Engine) SetPairing(code string, err error) {
	e.mu.Lock()
	e.pairingCode = code
	e.pairingErr = err
	e.mu.Unlock()
}

// Conns returns the connections opened so far, oldest first.
func (e *Engine) Conns() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.conns)
}

// ConnsFor returns the connections opened for one session id.
func (e *Engine) ConnsFor(id string) []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Conn
	for _, c := range e.conns {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

// Purged returns the ids passed to Purge.
func (e *Engine) Purged() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.purged)
}

// WaitConn blocks until the n-th connection (1-based) for id exists.
func (e *Engine) WaitConn(tb testing.TB, id string, n int) *Conn {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conns := e.ConnsFor(id); len(conns) >= n {
			return conns[n-1]
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("enginetest: connection %d for %q was not opened", n, id)
	return nil
}

// Sent is a message recorded by Conn.SendMessage.
type Sent struct {
	To  string
	Msg engine.Outgoing
}

// Conn is a scripted connection.
type Conn struct {
	ID    string
	State *authstate.State
	Seq   int

	mu              sync.Mutex
	events          chan engine.Event
	closed          bool
	pairingCode     string
	pairingErr      error
	pairingRequests []string
	sent            []Sent
	sendErr         error
}

var _ engine.Conn = (*Conn)(nil)

func (c *Conn) Events() <-chan engine.Event { return c.events }

func (c *Conn) Registered() bool { return c.State != nil && c.State.Registered }

func (c *Conn) RequestPairingCode(ctx context.Context, number string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", engine.ErrClosed
	}
	c.pairingRequests = append(c.pairingRequests, number)
	return c.pairingCode, c.pairingErr
}

func (c *Conn) SendMessage(ctx context.Context, to string, msg engine.Outgoing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return engine.ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, Sent{To: to, Msg: msg})
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Emit pushes an event onto the stream. Events emitted after Close are dropped.
func (c *Conn) Emit(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		panic("enginetest: event buffer full")
	}
}

// Open emits a connection-open update.
func (c *Conn) Open() {
	c.Emit(engine.ConnectionUpdate{Status: engine.StatusOpen})
}

// Disconnect emits a close update with the given status code.
func (c *Conn) Disconnect(code int) {
	c.Emit(engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: code})
}

// Fail emits a protocol error.
func (c *Conn) Fail(err error) {
	c.Emit(engine.ProtocolError{Err: err})
}

// UpdateCreds emits a credentials update.
func (c *Conn) UpdateCreds(s *authstate.State) {
	c.Emit(engine.CredentialsUpdated{State: s})
}

// Receive emits a batch of inbound messages.
func (c *Conn) Receive(msgs ...engine.Message) {
	c.Emit(engine.MessagesUpserted{Messages: msgs})
}

// SetPairing changes the outcome of later RequestPairingCode calls.
func (c *Conn) SetPairing(code string, err error) {
	c.mu.Lock()
	c.pairingCode = code
	c.pairingErr = err
	c.mu.Unlock()
}

// SetSendError makes SendMessage fail.
func (c *Conn) SetSendError(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// PairingRequests returns the numbers passed to RequestPairingCode.
func (c *Conn) PairingRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pairingRequests)
}

// Sent returns the messages delivered through SendMessage.
func (c *Conn) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
