package sio

// PayloadKind distinguishes the two forms a message or ack value can take.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadBinary
)

// Payload is a value delivered to or from an event or ack callback: either
// a JSON-encoded string or a raw binary attachment.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Binary []byte
}

// TextPayload wraps a JSON-encoded string as a text Payload.
func TextPayload(s string) Payload {
	return Payload{Kind: PayloadText, Text: s}
}

// BinaryPayload wraps a raw byte slice as a binary Payload.
func BinaryPayload(b []byte) Payload {
	return Payload{Kind: PayloadBinary, Binary: b}
}

type eventKind int

const (
	eventBuiltinMessage eventKind = iota
	eventBuiltinError
	eventBuiltinConnect
	eventBuiltinClose
	eventCustom
)

// Event identifies what a Handler is registered for: one of the four
// built-in lifecycle events, or a custom event name carried in an EVENT
// packet's data array.
type Event struct {
	kind eventKind
	name string
}

// Built-in events, mirroring the Message/Error/Connect/Close variants every
// Socket.IO client exposes regardless of the server's event vocabulary.
var (
	OnMessage = Event{kind: eventBuiltinMessage}
	OnError   = Event{kind: eventBuiltinError}
	OnConnect = Event{kind: eventBuiltinConnect}
	OnClose   = Event{kind: eventBuiltinClose}
)

// OnEvent names a custom event, as emitted by the server under that name in
// an EVENT or BINARY_EVENT packet's data array.
func OnEvent(name string) Event {
	return Event{kind: eventCustom, name: name}
}

func (e Event) String() string {
	switch e.kind {
	case eventBuiltinMessage:
		return "Message"
	case eventBuiltinError:
		return "Error"
	case eventBuiltinConnect:
		return "Connect"
	case eventBuiltinClose:
		return "Close"
	default:
		return e.name
	}
}

// Handler is invoked with the delivered Payload and the Client it arrived
// on, so a handler can Emit a response without capturing the client from
// an enclosing closure.
type Handler func(Payload, *Client)
