package engine

import (
	"fmt"

	"github.com/dmitrymomot/wapair/pkg/authstate"
)

// Event is one item of a connection's event stream.
type Event interface {
	EventName() string
}

// ConnectionStatus is the socket state reported by ConnectionUpdate.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusOpen       ConnectionStatus = "open"
	StatusClose      ConnectionStatus = "close"
)

// StatusLoggedOut is the disconnect status code the network uses when it
// rejects the credentials.
const StatusLoggedOut = 401

// CredentialsUpdated carries the full, current credential bundle.
type CredentialsUpdated struct {
	State *authstate.State
}

// ConnectionUpdate reports a socket state change. StatusCode and Err are only
// meaningful for StatusClose.
type ConnectionUpdate struct {
	Status     ConnectionStatus
	StatusCode int
	Err        error
}

// MessagesUpserted carries a batch of inbound messages.
type MessagesUpserted struct {
	Messages []Message
}

// ProtocolError reports an engine-level failure not tied to a clean close.
type ProtocolError struct {
	Err error
}

func (CredentialsUpdated) EventName() string { return "creds.update" }
func (ConnectionUpdate) EventName() string   { return "connection.update" }
func (MessagesUpserted) EventName() string   { return "messages.upsert" }
func (ProtocolError) EventName() string      { return "error" }

func (u ConnectionUpdate) String() string {
	if u.Status != StatusClose {
		return string(u.Status)
	}
	if u.Err != nil {
		return fmt.Sprintf("close(%d): %v", u.StatusCode, u.Err)
	}
	return fmt.Sprintf("close(%d)", u.StatusCode)
}
