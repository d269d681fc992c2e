package sio

import "github.com/corvid-labs/socketio-client/engineio"

// Encode renders a Socket.IO packet into the Engine.IO MESSAGE packets that
// carry it on the wire: a text header, followed by one binary MESSAGE per
// attachment for the BINARY_* kinds.
func Encode(p Packet) []engineio.Packet {
	out := make([]engineio.Packet, 0, 1+len(p.Attachments))
	out = append(out, engineio.Packet{Kind: engineio.KindMessage, Body: []byte(EncodeHeader(p))})
	for _, a := range p.Attachments {
		out = append(out, engineio.Packet{Kind: engineio.KindMessage, Binary: true, Body: a})
	}
	return out
}

// Decoder reassembles Socket.IO packets from the stream of Engine.IO MESSAGE
// packets a Session delivers. BINARY_* headers block on their promised
// attachment frames before a packet is surfaced.
type Decoder struct {
	pending *Packet
}

// NewDecoder returns a Decoder with no reassembly in progress.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one inbound Engine.IO MESSAGE packet. It returns a non-nil
// Packet once a full Socket.IO frame is assembled, or an error if the
// packet violates the framing (a binary frame with nothing pending, or a
// text header arriving mid-reassembly).
func (d *Decoder) Feed(ep engineio.Packet) (*Packet, error) {
	if ep.Binary {
		if d.pending == nil {
			return nil, &InvalidPacketError{Message: "binary frame with no BINARY_* header pending"}
		}
		d.pending.Attachments = append(d.pending.Attachments, ep.Body)
		if d.pending.Complete() {
			complete := d.pending
			d.pending = nil
			return complete, nil
		}
		return nil, nil
	}

	if d.pending != nil {
		return nil, &InvalidPacketError{Message: "text header arrived while a binary reassembly is outstanding"}
	}
	p, err := ParseHeader(string(ep.Body))
	if err != nil {
		return nil, err
	}
	if p.Kind.IsBinary() && p.AttachmentCount > 0 {
		d.pending = &p
		return nil, nil
	}
	return &p, nil
}
