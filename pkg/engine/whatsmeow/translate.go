package whatsmeow

import (
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
)

// Close codes reported for socket drops that carry no server status.
const (
	StatusConnectionClosed   = 428
	StatusConnectionReplaced = 440
)

var errClientOutdated = errors.New("client version rejected by server")

// translate maps a whatsmeow event onto engine events. When the event changes
// the credential bundle, the new bundle is returned as next.
func translate(evt any, state *authstate.State) (out []engine.Event, next *authstate.State) {
	switch e := evt.(type) {
	case *events.Connected:
		return []engine.Event{engine.ConnectionUpdate{Status: engine.StatusOpen}}, nil

	case *events.PairSuccess:
		next = registeredState(state, e.ID, e.Platform, e.BusinessName)
		return []engine.Event{engine.CredentialsUpdated{State: next.Clone()}}, next

	case *events.PairError:
		return []engine.Event{engine.ProtocolError{Err: fmt.Errorf("pairing with %s failed: %w", e.ID, e.Error)}}, nil

	case *events.Disconnected:
		return []engine.Event{closed(StatusConnectionClosed, nil)}, nil

	case *events.LoggedOut:
		return []engine.Event{closed(engine.StatusLoggedOut, fmt.Errorf("logged out: reason %d", int(e.Reason)))}, nil

	case *events.ConnectFailure:
		var err error
		if e.Message != "" {
			err = errors.New(e.Message)
		}
		return []engine.Event{closed(int(e.Reason), err)}, nil

	case *events.StreamReplaced:
		return []engine.Event{closed(StatusConnectionReplaced, errors.New("stream replaced by another connection"))}, nil

	case *events.TemporaryBan:
		return []engine.Event{engine.ProtocolError{Err: fmt.Errorf("temporary ban: %v", e)}}, nil

	case *events.StreamError:
		return []engine.Event{engine.ProtocolError{Err: fmt.Errorf("stream error %s", e.Code)}}, nil

	case *events.ClientOutdated:
		return []engine.Event{engine.ProtocolError{Err: errClientOutdated}}, nil

	case *events.Message:
		return []engine.Event{engine.MessagesUpserted{Messages: []engine.Message{inboundMessage(e)}}}, nil
	}
	return nil, nil
}

func closed(code int, err error) engine.ConnectionUpdate {
	return engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: code, Err: err}
}

func inboundMessage(e *events.Message) engine.Message {
	key := engine.MessageKey{
		RemoteJID: e.Info.Chat.String(),
		ID:        string(e.Info.ID),
		FromMe:    e.Info.IsFromMe,
	}
	if e.Info.IsGroup {
		key.Participant = e.Info.Sender.String()
	}
	return engine.Message{Key: key, Content: content(e.Message), Raw: e.Message}
}

// content picks the payload shapes the dispatcher understands. Anything else
// is reported by its protobuf field name.
func content(m *waE2E.Message) *engine.Content {
	if m == nil {
		return nil
	}
	switch {
	case m.Conversation != nil:
		text := m.GetConversation()
		return &engine.Content{Conversation: &text}
	case m.ExtendedTextMessage != nil:
		return &engine.Content{ExtendedText: &engine.ExtendedText{Text: m.GetExtendedTextMessage().GetText()}}
	case m.ImageMessage != nil:
		return &engine.Content{Image: &engine.Image{Caption: m.GetImageMessage().GetCaption()}}
	}

	var kind string
	m.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, _ protoreflect.Value) bool {
		kind = string(fd.Name())
		return false
	})
	if kind == "" {
		return nil
	}
	return &engine.Content{Kind: kind}
}

func outgoingMessage(msg engine.Outgoing) *waE2E.Message {
	ext := &waE2E.ExtendedTextMessage{Text: proto.String(msg.Text)}
	if q := msg.Quoted; q != nil {
		participant := q.Key.Participant
		if participant == "" {
			participant = q.Key.RemoteJID
		}
		quoted, _ := q.Raw.(*waE2E.Message)
		ext.ContextInfo = &waE2E.ContextInfo{
			StanzaID:      proto.String(q.Key.ID),
			Participant:   proto.String(participant),
			QuotedMessage: quoted,
		}
	}
	return &waE2E.Message{ExtendedTextMessage: ext}
}

func parseJID(s string) (types.JID, error) {
	jid, err := types.ParseJID(s)
	if err != nil {
		return types.JID{}, errors.Join(ErrInvalidJID, err)
	}
	if jid.User == "" {
		return types.JID{}, fmt.Errorf("%w: %q has no user part", ErrInvalidJID, s)
	}
	return jid, nil
}

func eventName(evt any) string {
	return fmt.Sprintf("%T", evt)
}
