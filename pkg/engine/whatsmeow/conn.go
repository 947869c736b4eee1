package whatsmeow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
)

const eventBuffer = 256

type conn struct {
	id         string
	client     *whatsmeow.Client
	eng        *Engine
	log        *slog.Logger
	registered bool
	handlerID  uint32

	stateMu sync.Mutex
	state   *authstate.State

	// emitMu is held for reading while sending, and for writing while
	// closing events, so a send never races the close.
	emitMu    sync.RWMutex
	events    chan engine.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ engine.Conn = (*conn)(nil)

func newConn(id string, client *whatsmeow.Client, state *authstate.State, eng *Engine, log *slog.Logger) *conn {
	c := &conn{
		id:         id,
		client:     client,
		eng:        eng,
		log:        log,
		registered: client.Store.ID != nil,
		state:      state.Clone(),
		events:     make(chan engine.Event, eventBuffer),
		done:       make(chan struct{}),
	}
	c.handlerID = client.AddEventHandler(c.handle)
	return c
}

func (c *conn) Events() <-chan engine.Event { return c.events }

func (c *conn) Registered() bool { return c.registered }

func (c *conn) RequestPairingCode(ctx context.Context, number string) (string, error) {
	if c.closed() {
		return "", engine.ErrClosed
	}
	if !c.client.IsConnected() {
		return "", engine.ErrNotConnected
	}
	return c.client.PairPhone(ctx, number, true, c.eng.clientType, c.eng.displayName)
}

func (c *conn) SendMessage(ctx context.Context, to string, msg engine.Outgoing) error {
	if c.closed() {
		return engine.ErrClosed
	}
	jid, err := parseJID(to)
	if err != nil {
		return err
	}
	if _, err := c.client.SendMessage(ctx, jid, outgoingMessage(msg)); err != nil {
		return errors.Join(ErrSend, err)
	}
	return nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.RemoveEventHandler(c.handlerID)
		c.client.Disconnect()

		c.emitMu.Lock()
		close(c.events)
		c.emitMu.Unlock()
	})
	return nil
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// handle runs on whatsmeow's event goroutine.
func (c *conn) handle(evt any) {
	if c.eng.logEvents {
		c.log.Debug("whatsmeow event", logger.Event(eventName(evt)))
	}

	c.stateMu.Lock()
	out, next := translate(evt, c.state)
	if next != nil {
		c.state = next
	}
	c.stateMu.Unlock()

	for _, ev := range out {
		c.emit(ev)
	}
}

func (c *conn) emit(ev engine.Event) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.closed() {
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// loggedOutConn stands in for a registered session whose device keys are
// gone. It reports a single logged-out close and nothing else.
type loggedOutConn struct {
	events chan engine.Event
	once   sync.Once
}

func newLoggedOutConn(cause error) *loggedOutConn {
	c := &loggedOutConn{events: make(chan engine.Event, 1)}
	c.events <- engine.ConnectionUpdate{
		Status:     engine.StatusClose,
		StatusCode: engine.StatusLoggedOut,
		Err:        cause,
	}
	return c
}

func (c *loggedOutConn) Events() <-chan engine.Event { return c.events }
func (c *loggedOutConn) Registered() bool            { return true }

func (c *loggedOutConn) RequestPairingCode(context.Context, string) (string, error) {
	return "", engine.ErrNotConnected
}

func (c *loggedOutConn) SendMessage(context.Context, string, engine.Outgoing) error {
	return engine.ErrNotConnected
}

func (c *loggedOutConn) Close() error {
	c.once.Do(func() { close(c.events) })
	return nil
}
