package engine

import "errors"

var (
	// ErrClosed is returned by Conn methods after Close.
	ErrClosed = errors.New("engine: connection closed")

	// ErrNotConnected is returned when an operation needs an open socket.
	ErrNotConnected = errors.New("engine: not connected")
)
