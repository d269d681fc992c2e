package engineio

// Package engineio implements the Engine.IO v4 framing and transport layer
// that Socket.IO is built on top of.

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// Kind identifies the Engine.IO packet type. The numeric value is the wire
// digit that prefixes every textual packet.
type Kind int

const (
	KindOpen Kind = iota
	KindClose
	KindPing
	KindPong
	KindMessage
	KindUpgrade
	KindNoop
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindMessage:
		return "message"
	case KindUpgrade:
		return "upgrade"
	case KindNoop:
		return "noop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// recordSeparator delimits packets within one long-polling response body.
const recordSeparator = 0x1e

// binaryWSTag is the leading byte of a WebSocket binary frame carrying a raw
// MESSAGE packet body.
const binaryWSTag = 0x04

// binaryHTTPMarker prefixes a base64-encoded MESSAGE body in a long-polling
// payload.
const binaryHTTPMarker = 'b'

// Packet is a tagged Engine.IO frame. Body holds text for every kind except
// a binary MESSAGE, where Binary is true and Body holds raw bytes.
type Packet struct {
	Kind   Kind
	Binary bool
	Body   []byte
}

func newTextPacket(kind Kind, body string) Packet {
	return Packet{Kind: kind, Body: []byte(body)}
}

// EncodeHTTP renders a packet into the textual form used on a long-polling
// connection: a kind digit followed by the body, with binary MESSAGE bodies
// base64-encoded behind a "b" marker instead of a kind digit.
func EncodeHTTP(p Packet) []byte {
	if p.Kind == KindMessage && p.Binary {
		out := make([]byte, 0, base64.StdEncoding.EncodedLen(len(p.Body))+1)
		out = append(out, binaryHTTPMarker)
		enc := make([]byte, base64.StdEncoding.EncodedLen(len(p.Body)))
		base64.StdEncoding.Encode(enc, p.Body)
		return append(out, enc...)
	}
	out := make([]byte, 0, len(p.Body)+1)
	out = append(out, byte('0'+p.Kind))
	return append(out, p.Body...)
}

// JoinHTTP concatenates multiple encoded packets with the record separator,
// as expected in a long-polling POST body.
func JoinHTTP(packets []Packet) []byte {
	var buf bytes.Buffer
	for i, p := range packets {
		if i > 0 {
			buf.WriteByte(recordSeparator)
		}
		buf.Write(EncodeHTTP(p))
	}
	return buf.Bytes()
}

// DecodeHTTPStream splits a long-polling response body on the record
// separator and decodes each fragment. An empty body decodes to zero
// packets without error.
func DecodeHTTPStream(body []byte) ([]Packet, error) {
	if len(body) == 0 {
		return nil, nil
	}
	fragments := bytes.Split(body, []byte{recordSeparator})
	packets := make([]Packet, 0, len(fragments))
	for _, frag := range fragments {
		p, err := decodeHTTPFragment(frag)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func decodeHTTPFragment(frag []byte) (Packet, error) {
	if len(frag) == 0 {
		return Packet{}, &InvalidPacketError{Message: "empty packet fragment"}
	}
	if frag[0] == binaryHTTPMarker {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(frag)-1))
		n, err := base64.StdEncoding.Decode(decoded, frag[1:])
		if err != nil {
			return Packet{}, &InvalidPacketError{Message: "malformed base64 body: " + err.Error()}
		}
		return Packet{Kind: KindMessage, Binary: true, Body: decoded[:n]}, nil
	}
	kind := frag[0] - '0'
	if kind > byte(KindNoop) {
		return Packet{}, &InvalidPacketError{Message: fmt.Sprintf("unknown packet kind digit %q", frag[0])}
	}
	return Packet{Kind: Kind(kind), Body: frag[1:]}, nil
}

// EncodeWSFrame renders a packet into the form carried by a single
// WebSocket frame: a text frame for text kinds, a binary frame tagged with
// binaryWSTag for a binary MESSAGE.
func EncodeWSFrame(p Packet) Frame {
	if p.Kind == KindMessage && p.Binary {
		data := make([]byte, 0, len(p.Body)+1)
		data = append(data, binaryWSTag)
		data = append(data, p.Body...)
		return Frame{Binary: true, Data: data}
	}
	text := make([]byte, 0, len(p.Body)+1)
	text = append(text, byte('0'+p.Kind))
	text = append(text, p.Body...)
	return Frame{Binary: false, Data: text}
}

// DecodeWSFrame decodes a single inbound WebSocket frame into a packet.
func DecodeWSFrame(f Frame) (Packet, error) {
	if f.Binary {
		if len(f.Data) == 0 || f.Data[0] != binaryWSTag {
			return Packet{}, &InvalidPacketError{Message: "binary frame missing message tag"}
		}
		body := make([]byte, len(f.Data)-1)
		copy(body, f.Data[1:])
		return Packet{Kind: KindMessage, Binary: true, Body: body}, nil
	}
	if len(f.Data) == 0 {
		return Packet{}, &InvalidPacketError{Message: "empty text frame"}
	}
	kind := f.Data[0] - '0'
	if kind > byte(KindNoop) {
		return Packet{}, &InvalidPacketError{Message: fmt.Sprintf("unknown packet kind digit %q", f.Data[0])}
	}
	body := make([]byte, len(f.Data)-1)
	copy(body, f.Data[1:])
	return Packet{Kind: Kind(kind), Body: body}, nil
}
