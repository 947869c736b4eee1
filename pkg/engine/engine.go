package engine

import (
	"context"

	"github.com/dmitrymomot/wapair/pkg/authstate"
)

// Engine opens protocol connections.
type Engine interface {
	// Connect starts a connection authenticated with state. The state is
	// owned by the caller; engines report changes as CredentialsUpdated.
	Connect(ctx context.Context, id string, state *authstate.State) (Conn, error)
}

// Conn is one live protocol connection.
type Conn interface {
	// Events returns the ordered event stream. It is closed after Close.
	Events() <-chan Event
	// Registered reports whether the credentials this connection was opened
	// with have completed pairing.
	Registered() bool
	// RequestPairingCode asks the network for a code linking number to the
	// connection's credentials. The raw engine format is returned.
	RequestPairingCode(ctx context.Context, number string) (string, error)
	// SendMessage delivers an outgoing message to a chat.
	SendMessage(ctx context.Context, to string, msg Outgoing) error
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Purger is implemented by engines that keep their own copy of key material
// and must forget it when a session is invalidated.
type Purger interface {
	Purge(ctx context.Context, id string, state *authstate.State) error
}

// Pinger is implemented by engines that can report backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
