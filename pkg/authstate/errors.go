package authstate

import "errors"

var (
	// ErrNotFound is returned by Load when the id has no stored partition.
	ErrNotFound = errors.New("authstate: not found")

	// ErrInvalidID is returned for empty ids or ids that are unsafe as keys.
	ErrInvalidID = errors.New("authstate: invalid session id")

	// ErrNilState is returned by Save when a nil state is supplied.
	ErrNilState = errors.New("authstate: nil state")

	// ErrCorruptState is returned when a stored partition cannot be decoded.
	ErrCorruptState = errors.New("authstate: corrupt state")
)
