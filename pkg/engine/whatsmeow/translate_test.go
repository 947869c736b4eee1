package whatsmeow

import (
	"errors"
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wapair/pkg/authstate"
	"github.com/dmitrymomot/wapair/pkg/engine"
)

func TestTranslate_Connection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		evt  any
		want engine.ConnectionUpdate
	}{
		{"connected", &events.Connected{}, engine.ConnectionUpdate{Status: engine.StatusOpen}},
		{"disconnected", &events.Disconnected{}, engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: StatusConnectionClosed}},
		{"logged out", &events.LoggedOut{}, engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: engine.StatusLoggedOut}},
		{"replaced", &events.StreamReplaced{}, engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: StatusConnectionReplaced}},
		{"connect failure", &events.ConnectFailure{Reason: events.ConnectFailureReason(503)}, engine.ConnectionUpdate{Status: engine.StatusClose, StatusCode: 503}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, next := translate(tt.evt, nil)
			require.Len(t, out, 1)
			assert.Nil(t, next)

			got, ok := out[0].(engine.ConnectionUpdate)
			require.True(t, ok)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.StatusCode, got.StatusCode)
		})
	}
}

func TestTranslate_ProtocolErrors(t *testing.T) {
	t.Parallel()

	for _, evt := range []any{
		&events.StreamError{Code: "503"},
		&events.TemporaryBan{},
		&events.ClientOutdated{},
		&events.PairError{Error: errors.New("bad signature")},
	} {
		out, _ := translate(evt, nil)
		require.Len(t, out, 1, "%T", evt)
		pe, ok := out[0].(engine.ProtocolError)
		require.True(t, ok, "%T", evt)
		assert.Error(t, pe.Err)
	}
}

func TestTranslate_PairSuccess(t *testing.T) {
	t.Parallel()

	jid := types.NewADJID("628123456789", 0, 12)
	prev := &authstate.State{Meta: map[string]string{"keep": "1"}}

	out, next := translate(&events.PairSuccess{ID: jid, Platform: "android"}, prev)
	require.Len(t, out, 1)
	require.NotNil(t, next)

	upd, ok := out[0].(engine.CredentialsUpdated)
	require.True(t, ok)
	assert.True(t, upd.State.Registered)
	assert.Equal(t, jid.String(), string(upd.State.Creds))
	assert.Equal(t, "android", upd.State.Meta[metaPlatform])
	assert.Equal(t, "1", upd.State.Meta["keep"])
	assert.False(t, prev.Registered, "previous state is not mutated")

	got, ok, err := deviceJID(next)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jid, got)
}

func TestDeviceJID(t *testing.T) {
	t.Parallel()

	_, ok, err := deviceJID(nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = deviceJID(&authstate.State{Creds: []byte("628123456789@s.whatsapp.net")})
	require.NoError(t, err)
	assert.False(t, ok, "unregistered state has no device")

	_, _, err = deviceJID(&authstate.State{Registered: true, Creds: []byte("628:x@s.whatsapp.net")})
	require.ErrorIs(t, err, ErrInvalidJID)
}

func TestTranslate_Message(t *testing.T) {
	t.Parallel()

	chat := types.NewJID("628123456789", types.DefaultUserServer)
	msg := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
			ID:            "3EB0ABC",
		},
		Message: &waE2E.Message{Conversation: proto.String("Hi")},
	}

	out, _ := translate(msg, nil)
	require.Len(t, out, 1)
	up, ok := out[0].(engine.MessagesUpserted)
	require.True(t, ok)
	require.Len(t, up.Messages, 1)

	m := up.Messages[0]
	assert.Equal(t, chat.String(), m.Key.RemoteJID)
	assert.Equal(t, "3EB0ABC", m.Key.ID)
	assert.Empty(t, m.Key.Participant)
	require.NotNil(t, m.Content)
	require.NotNil(t, m.Content.Conversation)
	assert.Equal(t, "Hi", *m.Content.Conversation)
	assert.Same(t, msg.Message, m.Raw)
}

func TestContent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, content(nil))
	assert.Nil(t, content(&waE2E.Message{}))

	c := content(&waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("link")}})
	require.NotNil(t, c.ExtendedText)
	assert.Equal(t, "link", c.ExtendedText.Text)

	c = content(&waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic")}})
	require.NotNil(t, c.Image)
	assert.Equal(t, "pic", c.Image.Caption)

	c = content(&waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}})
	require.NotNil(t, c)
	assert.Nil(t, c.Conversation)
	assert.Equal(t, "reactionMessage", c.Kind)
}

func TestOutgoingMessage(t *testing.T) {
	t.Parallel()

	plain := outgoingMessage(engine.Outgoing{Text: "hello"})
	assert.Equal(t, "hello", plain.GetExtendedTextMessage().GetText())
	assert.Nil(t, plain.GetExtendedTextMessage().GetContextInfo())

	raw := &waE2E.Message{Conversation: proto.String("hi")}
	quoted := outgoingMessage(engine.Outgoing{
		Text: "hello",
		Quoted: &engine.Message{
			Key: engine.MessageKey{RemoteJID: "628123456789@s.whatsapp.net", ID: "ID1"},
			Raw: raw,
		},
	})
	ci := quoted.GetExtendedTextMessage().GetContextInfo()
	require.NotNil(t, ci)
	assert.Equal(t, "ID1", ci.GetStanzaID())
	assert.Equal(t, "628123456789@s.whatsapp.net", ci.GetParticipant())
	assert.Same(t, raw, ci.GetQuotedMessage())
}

func TestParseJID(t *testing.T) {
	t.Parallel()

	jid, err := parseJID("628123456789@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "628123456789", jid.User)

	_, err = parseJID("s.whatsapp.net")
	require.ErrorIs(t, err, ErrInvalidJID)
}
