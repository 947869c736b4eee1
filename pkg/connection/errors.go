package connection

import (
	"errors"

	"github.com/dmitrymomot/wapair/pkg/pairing"
	"github.com/dmitrymomot/wapair/pkg/phone"
)

var (
	// ErrInvalidIdentifier is returned when the session id has no known
	// country calling code. Pairing is not attempted.
	ErrInvalidIdentifier = phone.ErrInvalidIdentifier

	// ErrPairingRequestFailed is returned when the engine refused to issue a
	// pairing code. The session stays in awaiting_pairing.
	ErrPairingRequestFailed = pairing.ErrPairingRequestFailed

	ErrTransientDisconnect   = errors.New("connection: transient disconnect")
	ErrAuthenticationFailure = errors.New("connection: authentication failure")
	ErrProtocolError         = errors.New("connection: protocol error")
	ErrRetriesExhausted      = errors.New("connection: retries exhausted")

	// ErrStopped is returned by operations on a controller that reached a
	// terminal state.
	ErrStopped = errors.New("connection: session stopped")
)
