package pairing

import "errors"

// ErrPairingRequestFailed wraps any failure of the engine pairing-code request.
var ErrPairingRequestFailed = errors.New("pairing: pairing code request failed")
