package sessions

import "errors"

var (
	// ErrEmptyID is returned when a raw id normalizes to the empty string.
	ErrEmptyID = errors.New("sessions: phone number is empty")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("sessions: manager is shut down")

	// ErrPurgeFailed wraps engine errors raised while forgetting a session's keys.
	ErrPurgeFailed = errors.New("sessions: failed to purge engine state")
)
