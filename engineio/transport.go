package engineio

import "crypto/tls"

// Frame is one inbound or outbound unit on a Transport: either a text frame
// or a binary frame. Exactly one of the two forms is meaningful depending on
// Binary.
type Frame struct {
	Binary bool
	Data   []byte
}

// Transport is the uniform byte-frame channel a Session drives. It is
// fulfilled by the long-polling backend and the WebSocket backend (C2); the
// Session (C3) never depends on the concrete type. Each backend performs its
// own C1 framing internally (splitting a polling response on the record
// separator, or stripping the binary tag off a WebSocket frame) and hands
// the Session already-decoded Engine.IO packets.
type Transport interface {
	// Send encodes and writes a single Engine.IO packet.
	Send(p Packet) error
	// Inbound returns the channel of packets received from the server. The
	// channel is closed when the transport closes or fails; a failure is
	// reported once on Err before the channel closes.
	Inbound() <-chan Packet
	// Err returns the error that caused Inbound to close, if any.
	Err() error
	// Close releases the transport's underlying connection(s).
	Close() error
}

// dialOptions carries the collaborators and settings both transport
// backends need, threaded in from the Session's Config.
type dialOptions struct {
	httpClient doClient
	dialer     WSDialer
	tlsConfig  *tls.Config
	headers    map[string]string
	idGen      func() string
}
