package pairing

import (
	"context"
	"errors"
	"time"
)

// DefaultSettle is the delay between socket creation and the code request.
const DefaultSettle = 3 * time.Second

// Requester is the part of an engine connection the flow needs.
type Requester interface {
	RequestPairingCode(ctx context.Context, number string) (string, error)
}

// Flow requests pairing codes.
type Flow struct {
	settle time.Duration
}

// Option configures a Flow.
type Option func(*Flow)

// WithSettle overrides the settle delay. Negative values are treated as zero.
func WithSettle(d time.Duration) Option {
	return func(f *Flow) {
		f.settle = max(d, 0)
	}
}

// New returns a Flow with DefaultSettle unless overridden.
func New(opts ...Option) *Flow {
	f := &Flow{settle: DefaultSettle}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Settle returns the configured settle delay.
func (f *Flow) Settle() time.Duration { return f.settle }

// Request waits for the settle delay, asks r for a code bound to number and
// returns it formatted. Cancelling ctx aborts both the wait and the request.
func (f *Flow) Request(ctx context.Context, r Requester, number string) (string, error) {
	if f.settle > 0 {
		timer := time.NewTimer(f.settle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	code, err := r.RequestPairingCode(ctx, number)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.Join(ErrPairingRequestFailed, err)
	}
	return Format(code), nil
}
