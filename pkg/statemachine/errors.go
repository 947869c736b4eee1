package statemachine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a transition table is inconsistent.
	ErrInvalidTransition = errors.New("statemachine: invalid transition")

	// ErrNoTransition means no transition is defined for the event in the
	// current state.
	ErrNoTransition = errors.New("statemachine: no transition")

	// ErrRejected means transitions exist but every guard refused.
	ErrRejected = errors.New("statemachine: rejected by guards")
)

// FireError describes a failed Fire. It matches ErrNoTransition or
// ErrRejected with errors.Is.
type FireError struct {
	State  string
	Event  string
	Reason error
}

func newFireError(state, event any, reason error) *FireError {
	return &FireError{State: fmt.Sprint(state), Event: fmt.Sprint(event), Reason: reason}
}

func (e *FireError) Error() string {
	return fmt.Sprintf("%v: state %q, event %q", e.Reason, e.State, e.Event)
}

func (e *FireError) Unwrap() error { return e.Reason }
