package connection

import (
	"log/slog"

	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/statemachine"
)

// State is a controller lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateLoadingCreds    State = "loading_creds"
	StateConnecting      State = "connecting"
	StateAwaitingPairing State = "awaiting_pairing"
	StateOpen            State = "open"
	StateClassifying     State = "classifying"
	StateReconnecting    State = "reconnecting"
	StateInvalidated     State = "invalidated"
	StateFailed          State = "failed"
	StateStopped         State = "stopped"
)

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	switch s {
	case StateInvalidated, StateFailed, StateStopped:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

type trigger string

const (
	evStart           trigger = "start"
	evRetry           trigger = "retry"
	evCredsLoaded     trigger = "creds_loaded"
	evConnectFailed   trigger = "connect_failed"
	evPairingRequired trigger = "pairing_required"
	evInvalidID       trigger = "invalid_id"
	evOpened          trigger = "opened"
	evClosed          trigger = "closed"
	evProtocolError   trigger = "protocol_error"
	evAuthFailure     trigger = "auth_failure"
	evTransient       trigger = "transient"
	evExhausted       trigger = "exhausted"
	evStop            trigger = "stop"
	evInvalidate      trigger = "invalidate"
)

var live = []State{
	StateIdle,
	StateLoadingCreds,
	StateConnecting,
	StateAwaitingPairing,
	StateOpen,
	StateClassifying,
	StateReconnecting,
}

func newMachine(log *slog.Logger) *statemachine.Machine[State, trigger] {
	return statemachine.MustNew(StateIdle,
		statemachine.WithTerminal[State, trigger](StateInvalidated, StateFailed, StateStopped),

		statemachine.WithTransition(StateIdle, StateLoadingCreds, evStart),
		statemachine.WithTransition(StateReconnecting, StateLoadingCreds, evRetry),
		statemachine.WithTransition(StateLoadingCreds, StateConnecting, evCredsLoaded),
		statemachine.WithTransitionFrom([]State{StateLoadingCreds, StateConnecting}, StateClassifying, evConnectFailed),

		statemachine.WithTransition(StateConnecting, StateAwaitingPairing, evPairingRequired),
		statemachine.WithTransition(StateConnecting, StateFailed, evInvalidID),
		statemachine.WithTransitionFrom([]State{StateConnecting, StateAwaitingPairing}, StateOpen, evOpened),

		statemachine.WithTransitionFrom([]State{StateConnecting, StateAwaitingPairing, StateOpen}, StateClassifying, evClosed),
		statemachine.WithTransitionFrom([]State{StateConnecting, StateAwaitingPairing, StateOpen}, StateClassifying, evProtocolError),

		statemachine.WithTransition(StateClassifying, StateInvalidated, evAuthFailure),
		statemachine.WithTransition(StateClassifying, StateReconnecting, evTransient),
		statemachine.WithTransition(StateClassifying, StateFailed, evExhausted),

		statemachine.WithTransitionFrom(live, StateStopped, evStop),
		statemachine.WithTransitionFrom(live, StateInvalidated, evInvalidate),

		statemachine.OnTransition(func(from, to State, ev trigger) {
			log.Debug("session state changed",
				slog.String("from", from.String()),
				logger.State(to.String()),
				logger.Event(string(ev)),
			)
		}),
	)
}
