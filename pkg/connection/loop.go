package connection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/phone"
)

// The methods in this file run on the controller goroutine only.

func (c *Controller) start() {
	if c.fsm.Is(StateIdle) && c.fire(evStart) {
		c.connect()
	}
}

func (c *Controller) addWaiter(reply chan<- pairReply) {
	switch c.fsm.Current() {
	case StateOpen:
		reply <- pairReply{res: PairResult{Registered: true}}
		return
	case StateAwaitingPairing:
		if c.code != "" {
			reply <- pairReply{res: PairResult{Code: c.code}}
			return
		}
		c.waiters = append(c.waiters, reply)
		if !c.pairing {
			c.requestCode()
		}
		return
	}

	c.waiters = append(c.waiters, reply)
	c.start()
}

func (c *Controller) replyAll(res PairResult, err error) {
	for _, w := range c.waiters {
		w <- pairReply{res: res, err: err}
	}
	c.waiters = nil
}

// connect loads credentials and opens an engine connection.
func (c *Controller) connect() {
	creds, found, err := authstate.LoadOrNew(c.ctx, c.store, c.id)
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.fire(evConnectFailed)
		c.logger.Warn("connect failed", logger.Error(err))
		c.retryTransient(err)
		return
	}
	c.creds = creds
	c.fire(evCredsLoaded)
	c.logger.Debug("credentials loaded", slog.Bool("stored", found), slog.Bool("registered", creds.Registered))

	conn, err := c.engine.Connect(c.ctx, c.id, creds.Clone())
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.fire(evConnectFailed)
		c.logger.Warn("connect failed", logger.Error(err))
		c.retryTransient(err)
		return
	}

	c.epoch++
	c.conn = conn
	go c.pump(c.epoch, conn.Events())

	if conn.Registered() {
		return
	}

	if err := phone.Validate(c.id); err != nil {
		c.logger.Warn("pairing refused", logger.Error(err))
		c.terminate(evInvalidID, ErrInvalidIdentifier)
		return
	}
	if c.fire(evPairingRequired) {
		c.requestCode()
	}
}

// pump forwards engine events into the mailbox until the stream closes.
func (c *Controller) pump(epoch uint64, events <-chan engine.Event) {
	for ev := range events {
		if !c.post(func() { c.handleEvent(epoch, ev) }) {
			return
		}
	}
}

// requestCode issues exactly one pairing-code request for the current
// connection. The result comes back through the mailbox.
func (c *Controller) requestCode() {
	c.code = ""
	c.pairErr = nil
	c.pairing = true

	ctx, cancel := context.WithCancel(c.ctx)
	c.pairCancel = cancel
	epoch, conn := c.epoch, c.conn

	go func() {
		code, err := c.flow.Request(ctx, conn, c.id)
		c.post(func() { c.onPairingResult(epoch, code, err) })
	}()
}

func (c *Controller) onPairingResult(epoch uint64, code string, err error) {
	if epoch != c.epoch || !c.fsm.Is(StateAwaitingPairing) || c.ctx.Err() != nil {
		return
	}
	c.pairing = false
	c.pairCancel = nil

	if err != nil {
		c.pairErr = err
		c.setLastErr(err)
		c.logger.Warn("pairing code request failed", logger.Error(err))
		c.replyAll(PairResult{}, err)
		return
	}

	c.code = code
	c.logger.Info("pairing code issued")
	c.replyAll(PairResult{Code: code}, nil)
}

func (c *Controller) cancelPairing() {
	if c.pairCancel != nil {
		c.pairCancel()
		c.pairCancel = nil
	}
	c.pairing = false
	c.code = ""
	c.pairErr = nil
}

func (c *Controller) handleEvent(epoch uint64, ev engine.Event) {
	if epoch != c.epoch {
		c.logger.Debug("stale event dropped", logger.Event(ev.EventName()))
		return
	}

	switch e := ev.(type) {
	case engine.CredentialsUpdated:
		c.persist(e.State)

	case engine.ConnectionUpdate:
		switch e.Status {
		case engine.StatusOpen:
			c.onOpen()
		case engine.StatusClose:
			c.onClose(e)
		}

	case engine.ProtocolError:
		c.onProtocolError(e.Err)

	case engine.MessagesUpserted:
		c.dispatch(e.Messages)
	}
}

func (c *Controller) persist(s *authstate.State) {
	if s == nil {
		return
	}
	s = s.Clone()
	s.UpdatedAt = time.Now().UTC()
	c.creds = s
	if err := c.store.Save(c.ctx, c.id, s); err != nil {
		c.setLastErr(err)
		c.logger.Error("failed to persist credentials", logger.Error(err))
	}
}

func (c *Controller) onOpen() {
	if !c.fire(evOpened) {
		return
	}
	c.cancelPairing()
	c.setAttempt(0)
	c.setLastErr(nil)
	c.logger.Info("session open")
	c.replyAll(PairResult{Registered: true}, nil)
}

func (c *Controller) onClose(u engine.ConnectionUpdate) {
	if !c.fire(evClosed) {
		return
	}
	c.closeConn()
	c.cancelPairing()

	log := c.logger.With(logger.StatusCode(u.StatusCode), logger.Error(u.Err))
	if c.policy.IsAuthFailure(u.StatusCode) {
		log.Warn("credentials rejected")
		c.terminate(evAuthFailure, causeOf(ErrAuthenticationFailure, u.Err))
		return
	}

	log.Info("connection closed")
	c.retryTransient(u.Err)
}

// retryTransient handles a close or a failed connect while in classifying.
// Both count against MaxCloseRetries and never consume the protocol error
// budget.
func (c *Controller) retryTransient(err error) {
	cause := causeOf(ErrTransientDisconnect, err)
	if c.policy.MaxCloseRetries > 0 && c.attempt >= c.policy.MaxCloseRetries {
		c.logger.Error("close retries exhausted", logger.Attempt(c.attempt), logger.Error(err))
		c.terminate(evExhausted, errors.Join(ErrRetriesExhausted, cause))
		return
	}
	c.reconnect(cause)
}

func (c *Controller) onProtocolError(err error) {
	if !c.fire(evProtocolError) {
		return
	}
	c.closeConn()
	c.cancelPairing()
	c.classifyError(err)
}

// classifyError handles a protocol-level failure while in classifying.
func (c *Controller) classifyError(err error) {
	cause := causeOf(ErrProtocolError, err)
	if c.policy.MaxErrorRetries > 0 && c.attempt >= c.policy.MaxErrorRetries {
		c.logger.Error("protocol error retries exhausted", logger.Attempt(c.attempt), logger.Error(err))
		c.terminate(evExhausted, errors.Join(ErrRetriesExhausted, cause))
		return
	}
	c.logger.Warn("protocol error", logger.Error(err))
	c.reconnect(cause)
}

func (c *Controller) reconnect(cause error) {
	if !c.fire(evTransient) {
		return
	}
	c.setLastErr(cause)
	c.replyAll(PairResult{}, cause)
	c.setAttempt(c.attempt + 1)
	c.retrySeq++
	seq := c.retrySeq

	c.logger.Info("reconnect scheduled", logger.Attempt(c.attempt), logger.Duration(c.policy.ReconnectDelay))
	c.retryTimer = time.AfterFunc(c.policy.ReconnectDelay, func() {
		c.post(func() { c.onRetry(seq) })
	})
}

func (c *Controller) onRetry(seq uint64) {
	if seq != c.retrySeq || !c.fsm.Is(StateReconnecting) {
		return
	}
	c.retryTimer = nil
	if c.fire(evRetry) {
		c.connect()
	}
}

func (c *Controller) stopRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// closeConn tears down the current connection and retires its epoch.
func (c *Controller) closeConn() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug("close connection", logger.Error(err))
	}
	c.conn = nil
	c.epoch++
}

func (c *Controller) dispatch(msgs []engine.Message) {
	if c.dispatcher == nil || c.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.policy.SendTimeout)
	defer cancel()
	if err := c.dispatcher.Handle(ctx, c.conn, msgs); err != nil {
		c.logger.Warn("message dispatch failed", logger.Error(err))
	}
}

func causeOf(kind, err error) error {
	if err == nil {
		return kind
	}
	return errors.Join(kind, err)
}
