package whatsmeow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
)

const (
	metaJID          = "jid"
	metaPlatform     = "platform"
	metaBusinessName = "business_name"

	// DefaultDisplayName is shown on the phone next to the linked device.
	DefaultDisplayName = "Chrome (Linux)"
)

// Engine opens whatsmeow clients backed by a shared SQL device store.
type Engine struct {
	db          *sql.DB
	container   *sqlstore.Container
	log         *slog.Logger
	displayName string
	clientType  whatsmeow.PairClientType
	logEvents   bool
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Purger = (*Engine)(nil)
	_ engine.Pinger = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and the whatsmeow internals.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDisplayName sets the client name shown in the phone's linked devices.
func WithDisplayName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.displayName = name
		}
	}
}

// WithClientType sets the browser type announced while pairing.
func WithClientType(t whatsmeow.PairClientType) Option {
	return func(e *Engine) { e.clientType = t }
}

// WithEventLogging logs every raw whatsmeow event at debug level.
func WithEventLogging() Option {
	return func(e *Engine) { e.logEvents = true }
}

// New opens the device store on db and applies its schema upgrades.
// db must point at Postgres; it is not closed by the engine.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Engine, error) {
	e := &Engine{
		db:          db,
		log:         logger.Discard(),
		displayName: DefaultDisplayName,
		clientType:  whatsmeow.PairClientChrome,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.container = sqlstore.NewWithDB(db, "postgres", newLogAdapter(e.log.With(logger.Component("whatsmeow.store"))))
	if err := e.container.Upgrade(ctx); err != nil {
		return nil, errors.Join(ErrStoreUpgrade, err)
	}
	return e, nil
}

// Connect opens a client for id. Registered states are resumed from the
// device store; anything else gets a fresh device awaiting pairing.
// A registered state whose device has vanished yields a connection that
// reports a logged-out close, so the controller invalidates it.
func (e *Engine) Connect(ctx context.Context, id string, state *authstate.State) (engine.Conn, error) {
	log := e.log.With(logger.SessionID(id))

	device, err := e.device(ctx, state)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		log.Warn("stored device missing, reporting logged out")
		return newLoggedOutConn(err), nil
	case err != nil:
		return nil, err
	}

	client := whatsmeow.NewClient(device, newLogAdapter(log.With(logger.Component("whatsmeow.client"))))
	client.EnableAutoReconnect = false

	c := newConn(id, client, state, e, log)
	if err := client.Connect(); err != nil {
		c.Close()
		return nil, errors.Join(ErrConnect, err)
	}
	return c, nil
}

// Purge deletes the device keys referenced by state.
func (e *Engine) Purge(ctx context.Context, id string, state *authstate.State) error {
	device, err := e.device(ctx, state)
	if errors.Is(err, ErrDeviceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if device.ID == nil {
		return nil
	}
	if err := device.Delete(ctx); err != nil {
		return fmt.Errorf("delete device for %s: %w", id, err)
	}
	e.log.Debug("device purged", logger.SessionID(id))
	return nil
}

// Ping reports whether the device store database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// device resolves the whatsmeow device for state, or a new one when the
// state has never been registered.
func (e *Engine) device(ctx context.Context, state *authstate.State) (*store.Device, error) {
	jid, ok, err := deviceJID(state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.container.NewDevice(), nil
	}
	device, err := e.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, errors.Join(ErrDeviceLookup, err)
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

// deviceJID extracts the paired device JID from a registered state.
func deviceJID(state *authstate.State) (types.JID, bool, error) {
	if state == nil || !state.Registered || len(state.Creds) == 0 {
		return types.JID{}, false, nil
	}
	jid, err := types.ParseJID(string(state.Creds))
	if err != nil {
		return types.JID{}, false, errors.Join(ErrInvalidJID, err)
	}
	return jid, true, nil
}

// registeredState builds the credential bundle recorded after pairing.
func registeredState(prev *authstate.State, jid types.JID, platform, business string) *authstate.State {
	s := prev.Clone()
	if s == nil {
		s = authstate.New()
	}
	s.Registered = true
	s.Creds = []byte(jid.String())
	if s.Meta == nil {
		s.Meta = make(map[string]string, 3)
	}
	s.Meta[metaJID] = jid.String()
	if platform != "" {
		s.Meta[metaPlatform] = platform
	}
	if business != "" {
		s.Meta[metaBusinessName] = business
	}
	return s
}
