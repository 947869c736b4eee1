package dispatcher

import (
	"context"
	"strings"

	"github.com/dmitrymomot/wapair/pkg/engine"
)

// Default auto-reply rule.
const (
	DefaultTrigger = "hi"
	DefaultReply   = "hello"
)

// AutoReply answers Trigger (case-insensitive, exact match) with Reply,
// quoting the original message in the chat it came from.
type AutoReply struct {
	Trigger string
	Reply   string
}

func (a AutoReply) OnText(ctx context.Context, sender Sender, msg engine.Message, text string) error {
	if a.Trigger == "" || !strings.EqualFold(text, a.Trigger) {
		return nil
	}
	quoted := msg
	return sender.SendMessage(ctx, msg.Key.RemoteJID, engine.Outgoing{
		Text:   a.Reply,
		Quoted: &quoted,
	})
}
