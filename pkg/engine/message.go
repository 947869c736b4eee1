package engine

// MessageKey addresses a message inside a chat.
type MessageKey struct {
	RemoteJID   string
	ID          string
	FromMe      bool
	Participant string
}

// Message is an inbound message. A nil Content means the message carried no
// payload (receipts, protocol stubs).
type Message struct {
	Key     MessageKey
	Content *Content
	// Raw is the engine-native message, used when quoting.
	Raw any
}

// Content lists the payload shapes the dispatcher understands. At most one of
// the typed fields is set; Kind names the payload when none of them is.
type Content struct {
	Conversation *string
	ExtendedText *ExtendedText
	Image        *Image
	Kind         string
}

// ExtendedText is a text message with formatting or a quote attached.
type ExtendedText struct {
	Text string
}

// Image is an image message; only its caption is modelled.
type Image struct {
	Caption string
}

// Outgoing is a text message, optionally quoting an inbound one.
type Outgoing struct {
	Text   string
	Quoted *Message
}
