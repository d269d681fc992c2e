package sio

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-labs/socketio-client/engineio"
	"github.com/golang/glog"
)

// session is the subset of *engineio.Session a Client depends on, narrowed
// to an interface so tests can drive dispatch without a real handshake.
type session interface {
	Send(p engineio.Packet) error
	Inbound() <-chan engineio.Packet
	Err() error
	Close() error
}

// Client is a Socket.IO client (C5) bound to one namespace on one
// engineio.Session. Handlers must be registered with On before Connect;
// after Connect the handler table is immutable.
type Client struct {
	rawURL string
	nsp    string
	eioCfg engineio.Config

	handlersMu     sync.RWMutex
	handlers       map[Event]Handler
	handlersLocked int32 // atomic bool

	session session
	dec     *Decoder
	acks    *ackStore

	packets chan Packet

	connected  int32 // atomic bool
	userClosed int32 // atomic bool

	connectOnce    sync.Once
	disconnectOnce sync.Once
	doneOnce       sync.Once
	doneCh         chan struct{}

	sendMu sync.Mutex // serializes the encode+write of one packet's frames

	connectErr error
}

// NewClient builds a Client for rawURL. The connection is not opened until
// Connect is called.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	cfg := config{namespace: "/"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !strings.HasPrefix(cfg.namespace, "/") {
		return nil, &IllegalNamespaceError{Namespace: cfg.namespace}
	}

	c := &Client{
		rawURL: rawURL,
		nsp:    cfg.namespace,
		eioCfg: engineio.Config{
			TransportMode: cfg.transportMode,
			HTTPClient:    cfg.httpClient,
			Dialer:        cfg.dialer,
			TLSConfig:     cfg.tlsConfig,
			Headers:       cfg.headers,
		},
		handlers: make(map[Event]Handler),
		dec:      NewDecoder(),
		acks:     newAckStore(),
		packets:  make(chan Packet, 64),
		doneCh:   make(chan struct{}),
	}
	return c, nil
}

// Namespace returns the namespace this client joins.
func (c *Client) Namespace() string {
	return c.nsp
}

// On registers a handler for ev. It must be called before Connect; calling
// it afterward returns IllegalActionAfterOpenError.
func (c *Client) On(ev Event, h Handler) error {
	if atomic.LoadInt32(&c.handlersLocked) == 1 {
		return &IllegalActionAfterOpenError{Action: "register a handler"}
	}
	c.handlersMu.Lock()
	c.handlers[ev] = h
	c.handlersMu.Unlock()
	return nil
}

// Connect opens the Engine.IO session, sends the namespace CONNECT packet,
// and starts the dispatch loop. Connect runs at most once; subsequent
// calls return the result of the first.
func (c *Client) Connect(ctx context.Context) error {
	c.connectOnce.Do(func() {
		atomic.StoreInt32(&c.handlersLocked, 1)
		session, err := engineio.Connect(ctx, c.rawURL, c.eioCfg)
		if err != nil {
			c.connectErr = err
			c.markDone()
			return
		}
		c.session = session
		atomic.StoreInt32(&c.connected, 1)
		go c.dispatchLoop()
		if err := c.send(Packet{Kind: KindConnect, Nsp: c.nsp}); err != nil {
			c.connectErr = err
		}
	})
	return c.connectErr
}

// Done returns a channel closed once the client's connection has ended,
// whether by a caller's Disconnect or by the session closing on its own.
func (c *Client) Done() <-chan struct{} {
	return c.doneCh
}

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.doneCh) })
}

func (c *Client) closedByUser() bool {
	return atomic.LoadInt32(&c.userClosed) == 1
}

// Packets returns the raw stream of decoded Socket.IO packets for this
// client's namespace, in arrival order, alongside the callback dispatch On
// registers. It is closed when the client disconnects.
func (c *Client) Packets() <-chan Packet {
	return c.packets
}

// send encodes p into its Engine.IO MESSAGE frames and writes them in
// order, holding sendMu so concurrent Emit/EmitWithAck calls don't
// interleave one packet's frames with another's.
func (c *Client) send(p Packet) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for _, ep := range Encode(p) {
		if err := c.session.Send(ep); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) buildEventPacket(event string, payload Payload, id *int) (Packet, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return Packet{}, err
	}
	switch payload.Kind {
	case PayloadText:
		return Packet{
			Kind: KindEvent,
			Nsp:  c.nsp,
			ID:   id,
			Data: "[" + string(eventJSON) + "," + payload.Text + "]",
		}, nil
	case PayloadBinary:
		return Packet{
			Kind:            KindBinaryEvent,
			Nsp:             c.nsp,
			ID:              id,
			Data:            "[" + string(eventJSON) + "]",
			Attachments:     [][]byte{payload.Binary},
			AttachmentCount: 1,
		}, nil
	default:
		return Packet{}, &InvalidPacketError{Message: "payload must be text or binary"}
	}
}

// Emit sends a fire-and-forget event to the server.
func (c *Client) Emit(event string, payload Payload) error {
	if atomic.LoadInt32(&c.connected) == 0 {
		return &ActionBeforeOpenError{Action: "emit"}
	}
	p, err := c.buildEventPacket(event, payload, nil)
	if err != nil {
		return err
	}
	return c.send(p)
}

// EmitWithAck sends an event carrying an ack id and registers cb to be
// invoked when the server's ACK/BINARY_ACK response arrives, or never if
// it arrives after timeout has elapsed.
func (c *Client) EmitWithAck(event string, payload Payload, timeout time.Duration, cb func(Payload)) error {
	if atomic.LoadInt32(&c.connected) == 0 {
		return &ActionBeforeOpenError{Action: "emit_with_ack"}
	}
	id := c.acks.add(timeout, cb)
	p, err := c.buildEventPacket(event, payload, &id)
	if err != nil {
		c.acks.cancel(id)
		return err
	}
	if err := c.send(p); err != nil {
		c.acks.cancel(id)
		return err
	}
	return nil
}

// Disconnect sends a namespace DISCONNECT packet and closes the underlying
// Engine.IO session. Disconnect is idempotent.
func (c *Client) Disconnect() error {
	var err error
	c.disconnectOnce.Do(func() {
		atomic.StoreInt32(&c.userClosed, 1)
		if atomic.LoadInt32(&c.connected) == 1 {
			_ = c.send(Packet{Kind: KindDisconnect, Nsp: c.nsp})
		}
		atomic.StoreInt32(&c.connected, 0)
		if c.session != nil {
			err = c.session.Close()
		} else {
			c.markDone()
		}
	})
	return err
}

// dispatchLoop owns the connected-phase packet loop: it reassembles
// Socket.IO packets from the Engine.IO MESSAGE stream and routes each one
// that belongs to this namespace.
func (c *Client) dispatchLoop() {
	defer close(c.packets)
	defer c.markDone()

	for ep := range c.session.Inbound() {
		sp, err := c.dec.Feed(ep)
		if err != nil {
			if glog.V(3) {
				glog.Warningf("sio: dropping malformed packet: %s", err)
			}
			c.dispatch(OnError, TextPayload(err.Error()))
			continue
		}
		if sp == nil {
			continue // awaiting further attachment frames
		}
		if sp.Nsp != c.nsp {
			continue
		}
		select {
		case c.packets <- *sp:
		default:
			if glog.V(3) {
				glog.Warningf("sio: Packets() channel full, dropping packet for nsp %s", sp.Nsp)
			}
		}
		c.route(sp)
	}

	atomic.StoreInt32(&c.connected, 0)
	if err := c.session.Err(); err != nil {
		c.dispatch(OnError, TextPayload(err.Error()))
	}
}

func (c *Client) route(p *Packet) {
	switch p.Kind {
	case KindConnect:
		c.dispatch(OnConnect, Payload{})
	case KindDisconnect:
		c.dispatch(OnClose, Payload{})
	case KindConnectError:
		msg := p.Data
		if msg == "" {
			msg = "No error message provided"
		}
		c.dispatch(OnError, TextPayload("Received a ConnectError frame: "+msg))
	case KindEvent:
		c.handleEvent(p)
	case KindBinaryEvent:
		c.handleBinaryEvent(p)
	case KindAck, KindBinaryAck:
		c.handleAck(p)
	}
}

func (c *Client) handleEvent(p *Packet) {
	if p.Data == "" {
		return
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(p.Data), &arr); err != nil {
		c.dispatch(OnError, TextPayload("invalid event data: "+err.Error()))
		return
	}
	if len(arr) == 0 {
		return
	}

	var ev Event
	var payloadRaw json.RawMessage
	if len(arr) > 1 {
		var name string
		if err := json.Unmarshal(arr[0], &name); err == nil {
			ev = OnEvent(name)
		} else {
			ev = OnMessage
		}
		payloadRaw = arr[1]
	} else {
		ev = OnMessage
		payloadRaw = arr[0]
	}
	c.dispatch(ev, TextPayload(string(payloadRaw)))
}

func (c *Client) handleBinaryEvent(p *Packet) {
	ev := OnMessage
	if p.Data != "" {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(p.Data), &arr); err == nil && len(arr) > 0 {
			var name string
			if err := json.Unmarshal(arr[0], &name); err == nil {
				ev = OnEvent(name)
			}
		}
	}
	if len(p.Attachments) == 0 {
		return
	}
	c.dispatch(ev, BinaryPayload(p.Attachments[0]))
}

func (c *Client) handleAck(p *Packet) {
	if p.ID == nil {
		return
	}
	var textPtr *string
	if p.Data != "" {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(p.Data), &arr); err == nil && len(arr) > 0 {
			t := string(arr[0])
			textPtr = &t
		} else {
			t := p.Data
			textPtr = &t
		}
	}
	var binary []byte
	if len(p.Attachments) > 0 {
		binary = p.Attachments[0]
	}
	c.acks.resolve(*p.ID, textPtr, binary)
}

// dispatch invokes the handler registered for ev. A custom event with no
// handler of its own falls back to the Message handler, if any.
func (c *Client) dispatch(ev Event, payload Payload) {
	c.handlersMu.RLock()
	h, ok := c.handlers[ev]
	if !ok && ev.kind == eventCustom {
		h, ok = c.handlers[OnMessage]
	}
	c.handlersMu.RUnlock()
	if ok {
		h(payload, c)
	}
}
