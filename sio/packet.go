// Package sio implements the Socket.IO v4 packet protocol (C4) and client
// (C5) layered on top of an engineio.Session.
package sio

import (
	"strconv"
	"strings"
)

// Kind identifies a Socket.IO packet type. The numeric value is the wire
// digit that leads the packet header.
type Kind int

const (
	KindConnect Kind = iota
	KindDisconnect
	KindEvent
	KindAck
	KindConnectError
	KindBinaryEvent
	KindBinaryAck
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindEvent:
		return "event"
	case KindAck:
		return "ack"
	case KindConnectError:
		return "connect_error"
	case KindBinaryEvent:
		return "binary_event"
	case KindBinaryAck:
		return "binary_ack"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsBinary reports whether a packet of this kind carries attachment frames.
func (k Kind) IsBinary() bool {
	return k == KindBinaryEvent || k == KindBinaryAck
}

// Packet is one Socket.IO frame: a header plus, for the BINARY_* kinds, the
// attachment bodies that follow it on the wire.
type Packet struct {
	Kind            Kind
	Nsp             string
	ID              *int
	Data            string
	Attachments     [][]byte
	AttachmentCount int
}

// Complete reports whether a BINARY_* packet has collected every attachment
// its header promised. Non-binary packets are always complete.
func (p Packet) Complete() bool {
	return !p.Kind.IsBinary() || len(p.Attachments) == p.AttachmentCount
}

// ParseHeader decodes a Socket.IO header string: a kind digit, an optional
// "<count>-" attachment count for the BINARY_* kinds, an optional
// "<nsp>," namespace (default "/"), an optional decimal ack id, and an
// optional JSON body.
func ParseHeader(s string) (Packet, error) {
	if len(s) == 0 {
		return Packet{}, &InvalidPacketError{Message: "empty header"}
	}
	digit := s[0]
	if digit < '0' || digit > '6' {
		return Packet{}, &InvalidPacketError{Message: "unknown packet kind digit " + string(digit)}
	}
	p := Packet{Kind: Kind(digit - '0'), Nsp: "/"}
	rest := s[1:]

	if p.Kind.IsBinary() {
		dash := strings.IndexByte(rest, '-')
		if dash < 0 {
			return Packet{}, &InvalidPacketError{Message: "binary packet missing attachment count"}
		}
		count, err := strconv.Atoi(rest[:dash])
		if err != nil || count < 0 {
			return Packet{}, &InvalidPacketError{Message: "malformed attachment count: " + rest[:dash]}
		}
		p.AttachmentCount = count
		rest = rest[dash+1:]
	}

	if strings.HasPrefix(rest, "/") {
		if comma := strings.IndexByte(rest, ','); comma >= 0 {
			p.Nsp = rest[:comma]
			rest = rest[comma+1:]
		} else {
			p.Nsp = rest
			rest = ""
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return Packet{}, &InvalidPacketError{Message: "malformed ack id"}
		}
		p.ID = &id
		rest = rest[digits:]
	}

	if rest != "" {
		p.Data = rest
	}
	return p, nil
}

// EncodeHeader renders a packet's header string, the inverse of ParseHeader.
func EncodeHeader(p Packet) string {
	var b strings.Builder
	b.WriteByte('0' + byte(p.Kind))
	if p.Kind.IsBinary() {
		b.WriteString(strconv.Itoa(p.AttachmentCount))
		b.WriteByte('-')
	}
	if p.Nsp != "" && p.Nsp != "/" {
		b.WriteString(p.Nsp)
		b.WriteByte(',')
	}
	if p.ID != nil {
		b.WriteString(strconv.Itoa(*p.ID))
	}
	b.WriteString(p.Data)
	return b.String()
}
