package connection

import (
	"slices"
	"time"

	"github.com/dmitrymomot/wapair/pkg/engine"
)

// Policy holds the reconnection and pairing parameters of a controller.
type Policy struct {
	// PairingSettle is the wait between connecting and requesting a code.
	PairingSettle time.Duration
	// ReconnectDelay is the fixed wait before each reconnect.
	ReconnectDelay time.Duration
	// AuthFailureCodes are disconnect status codes meaning the credentials
	// were rejected. Nil means {engine.StatusLoggedOut}.
	AuthFailureCodes []int
	// MaxCloseRetries caps reconnects driven by closes and failed connects.
	// Zero is unbounded.
	MaxCloseRetries int
	// MaxErrorRetries caps protocol-error-driven reconnects. Zero is unbounded.
	MaxErrorRetries int
	// SendTimeout bounds outgoing sends made by the dispatcher.
	SendTimeout time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		PairingSettle:    3 * time.Second,
		ReconnectDelay:   5 * time.Second,
		AuthFailureCodes: []int{engine.StatusLoggedOut},
		MaxCloseRetries:  0,
		MaxErrorRetries:  5,
		SendTimeout:      10 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	p.PairingSettle = max(p.PairingSettle, 0)
	p.ReconnectDelay = max(p.ReconnectDelay, 0)
	p.MaxCloseRetries = max(p.MaxCloseRetries, 0)
	p.MaxErrorRetries = max(p.MaxErrorRetries, 0)
	if p.AuthFailureCodes == nil {
		p.AuthFailureCodes = []int{engine.StatusLoggedOut}
	}
	if p.SendTimeout <= 0 {
		p.SendTimeout = DefaultPolicy().SendTimeout
	}
	return p
}

// IsAuthFailure reports whether a disconnect status code rejects the credentials.
func (p Policy) IsAuthFailure(code int) bool {
	return slices.Contains(p.AuthFailureCodes, code)
}
