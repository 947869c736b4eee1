package dispatcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/wapair/pkg/engine"
	"github.com/dmitrymomot/wapair/pkg/logger"
)

// ErrHandlerFailed wraps errors returned by a TextHandler.
var ErrHandlerFailed = errors.New("dispatcher: text handler failed")

// Sender delivers outgoing messages.
type Sender interface {
	SendMessage(ctx context.Context, to string, msg engine.Outgoing) error
}

// TextHandler reacts to the text of an inbound message.
type TextHandler interface {
	OnText(ctx context.Context, sender Sender, msg engine.Message, text string) error
}

// TextHandlerFunc adapts a function to TextHandler.
type TextHandlerFunc func(ctx context.Context, sender Sender, msg engine.Message, text string) error

func (f TextHandlerFunc) OnText(ctx context.Context, sender Sender, msg engine.Message, text string) error {
	return f(ctx, sender, msg, text)
}

// Dispatcher hands inbound batches to a TextHandler.
type Dispatcher struct {
	handler TextHandler
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a dispatcher calling h. A nil handler makes Handle a no-op.
func New(h TextHandler, opts ...Option) *Dispatcher {
	d := &Dispatcher{handler: h, logger: logger.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle inspects the first message of batch.
func (d *Dispatcher) Handle(ctx context.Context, sender Sender, batch []engine.Message) error {
	if len(batch) == 0 || d.handler == nil {
		return nil
	}
	msg := batch[0]
	if msg.Content == nil {
		return nil
	}

	text := ExtractText(msg.Content)
	d.logger.DebugContext(ctx, "inbound message",
		slog.String("from", msg.Key.RemoteJID),
		logger.MessageID(msg.Key.ID),
		slog.Int("batch", len(batch)),
	)

	if err := d.handler.OnText(ctx, sender, msg, text); err != nil {
		return errors.Join(ErrHandlerFailed, err)
	}
	return nil
}

// ExtractText returns the message text in payload priority order.
func ExtractText(c *engine.Content) string {
	switch {
	case c == nil:
		return ""
	case c.Conversation != nil:
		return *c.Conversation
	case c.ExtendedText != nil:
		return c.ExtendedText.Text
	case c.Image != nil:
		return c.Image.Caption
	default:
		return ""
	}
}
