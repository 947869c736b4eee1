package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/dispatcher"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/pairing"
	"github.com/dmitrymomot/wapair/pkg/phone"
	"github.com/dmitrymomot/wapair/pkg/statemachine"
)

const mailboxSize = 64

// credsDeleteTimeout bounds the credential cleanup done after the controller
// context has been cancelled.
const credsDeleteTimeout = 10 * time.Second

// PairResult is the outcome of a successful Pair call. Exactly one of Code
// and Registered is set.
type PairResult struct {
	Code       string
	Registered bool
}

// Outcome describes how a controller terminated.
type Outcome struct {
	State State
	Err   error
	// Creds is the last credential bundle the controller held, if any.
	Creds *authstate.State
}

// Status is a point-in-time view of a controller.
type Status struct {
	SessionID string
	State     State
	Attempt   int
	LastError error
}

// Controller manages the connection of one session.
type Controller struct {
	id         string
	store      authstate.Store
	engine     engine.Engine
	flow       *pairing.Flow
	dispatcher *dispatcher.Dispatcher
	policy     Policy
	logger     *slog.Logger
	onTerminal func(Outcome)

	fsm     *statemachine.Machine[State, trigger]
	mailbox chan func()
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	attemptView atomic.Int64
	lastErrMu   sync.Mutex
	lastErr     error

	// Owned by the run loop.
	creds      *authstate.State
	conn       engine.Conn
	epoch      uint64
	attempt    int
	code       string
	pairErr    error
	pairing    bool
	pairCancel context.CancelFunc
	retryTimer *time.Timer
	retrySeq   uint64
	waiters    []chan<- pairReply
	termErr    error
	outcome    Outcome
}

type pairReply struct {
	res PairResult
	err error
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDispatcher routes inbound messages to d.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(c *Controller) { c.dispatcher = d }
}

// WithTerminalHook registers fn, called once from the controller goroutine
// after the controller reached a terminal state and released its connection.
// fn must not call blocking methods of the same controller.
func WithTerminalHook(fn func(Outcome)) Option {
	return func(c *Controller) { c.onTerminal = fn }
}

// New creates an idle controller for the normalized session id. The
// controller goroutine starts immediately; nothing connects until Start or
// Pair is called.
func New(id string, store authstate.Store, eng engine.Engine, opts ...Option) *Controller {
	c := &Controller{
		id:      id,
		store:   store,
		engine:  eng,
		policy:  DefaultPolicy(),
		logger:  logger.Discard(),
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = c.policy.normalize()
	c.logger = c.logger.With(logger.Component("connection"), logger.SessionID(phone.Mask(id)))
	c.flow = pairing.New(pairing.WithSettle(c.policy.PairingSettle))
	c.fsm = newMachine(c.logger)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.run()
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.fsm.Current() }

// Done is closed once the controller goroutine has exited.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Outcome returns how the controller terminated. It reports false until Done
// is closed.
func (c *Controller) Outcome() (Outcome, bool) {
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return Outcome{}, false
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.lastErrMu.Lock()
	lastErr := c.lastErr
	c.lastErrMu.Unlock()
	return Status{
		SessionID: c.id,
		State:     c.fsm.Current(),
		Attempt:   int(c.attemptView.Load()),
		LastError: lastErr,
	}
}

// Start begins connecting an idle controller. It does not wait for the
// outcome. Starting a running controller is a no-op.
func (c *Controller) Start() error {
	if !c.post(c.start) {
		return ErrStopped
	}
	return nil
}

// Pair starts the controller if needed and blocks until a pairing code is
// available, the session is open, or an error occurs.
func (c *Controller) Pair(ctx context.Context) (PairResult, error) {
	reply := make(chan pairReply, 1)
	if !c.post(func() { c.addWaiter(reply) }) {
		return PairResult{}, ErrStopped
	}

	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return PairResult{}, ctx.Err()
	case <-c.done:
		select {
		case r := <-reply:
			return r.res, r.err
		default:
			return PairResult{}, ErrStopped
		}
	}
}

// Stop moves the controller to stopped, keeping persisted credentials, and
// waits for its goroutine to exit. Stopping a terminated controller is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	return c.halt(ctx, evStop)
}

// Invalidate moves the controller to invalidated, deleting persisted
// credentials, and waits for its goroutine to exit. It cancels any pending
// reconnect delay or pairing request.
func (c *Controller) Invalidate(ctx context.Context) error {
	return c.halt(ctx, evInvalidate)
}

func (c *Controller) halt(ctx context.Context, ev trigger) error {
	// Abort in-flight I/O so the command is picked up promptly.
	c.cancel()
	c.post(func() {
		if c.fsm.IsTerminal() {
			return
		}
		c.terminate(ev, ErrStopped)
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands fn to the run loop. It reports false once the loop has exited.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.mailbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for fn := range c.mailbox {
		fn()
		if c.fsm.IsTerminal() {
			c.teardown()
			return
		}
	}
}

func (c *Controller) setLastErr(err error) {
	c.lastErrMu.Lock()
	c.lastErr = err
	c.lastErrMu.Unlock()
}

func (c *Controller) setAttempt(n int) {
	c.attempt = n
	c.attemptView.Store(int64(n))
}

// teardown releases resources after a terminal transition.
func (c *Controller) teardown() {
	c.cancel()
	c.stopRetry()
	c.closeConn()

	final := c.fsm.Current()
	if final == StateInvalidated || final == StateFailed {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), credsDeleteTimeout)
		if err := c.store.Delete(ctx, c.id); err != nil {
			c.logger.Error("failed to delete credentials", logger.Error(err))
		}
		cancel()
	}

	err := c.termErr
	if err == nil {
		err = ErrStopped
	}
	c.replyAll(PairResult{}, err)
	c.setLastErr(err)

	c.outcome = Outcome{State: final, Err: err, Creds: c.creds.Clone()}
	c.logger.Info("session terminated", logger.State(final.String()), logger.Error(err))
	if c.onTerminal != nil {
		c.onTerminal(c.outcome)
	}
}

// fire applies a transition. Failures indicate a stale input and are logged.
func (c *Controller) fire(ev trigger) bool {
	if _, err := c.fsm.Fire(c.ctx, ev, nil); err != nil {
		c.logger.Debug("transition ignored", logger.Event(string(ev)), logger.Error(err))
		return false
	}
	return true
}

// terminate moves to a terminal state and records the error waiters receive.
func (c *Controller) terminate(ev trigger, err error) {
	if !c.fire(ev) {
		return
	}
	if !errors.Is(err, ErrInvalidIdentifier) && !errors.Is(err, ErrStopped) {
		err = errors.Join(ErrStopped, err)
	}
	c.termErr = err
}
