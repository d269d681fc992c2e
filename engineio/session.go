package engineio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chilts/sid"
	"github.com/golang/glog"
)

// TransportMode selects which Engine.IO transport(s) a Session may use, per
// the decision table in spec.md §4.3.
type TransportMode int

const (
	// Any performs a probe upgrade to WebSocket when the server offers it,
	// and stays on long-polling otherwise.
	Any TransportMode = iota
	// Polling stays on long-polling regardless of what the server offers.
	Polling
	// Websocket opens a WebSocket directly using the handshake sid,
	// skipping the probe.
	Websocket
	// WebsocketUpgrade behaves like Any; kept distinct to mirror the
	// source configuration surface, which exposes both names.
	WebsocketUpgrade
)

// State is a position in the Engine.IO session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// HandshakeInfo is the JSON body of the server's OPEN packet.
type HandshakeInfo struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// Config collects the collaborators and policy a Session needs. Every field
// has a usable zero value except the URL, which is passed separately to
// Connect.
type Config struct {
	// TransportMode chooses the transport selection strategy. Zero value
	// is Any.
	TransportMode TransportMode
	// Path overrides the default "/engine.io/" endpoint path.
	Path string
	// HTTPClient is used for long-polling GET/POST. Defaults to a new
	// http.Client whose transport carries TLSConfig when it is set.
	HTTPClient *http.Client
	// Dialer is used to open the WebSocket connection. Defaults to a
	// gorilla/websocket dialer built from TLSConfig.
	Dialer WSDialer
	// TLSConfig is applied to the default HTTP client and dialer when
	// HTTPClient/Dialer are not set explicitly.
	TLSConfig *tls.Config
	// Headers are added to every outgoing handshake and polling request.
	Headers map[string]string
	// IDGenerator produces the polling transport's cache-busting "t"
	// query parameter. Defaults to sid.IdBase64.
	IDGenerator func() string

	// OnOpen, if set, is called once the handshake completes successfully,
	// before transport selection runs.
	OnOpen func(HandshakeInfo)
	// OnClose, if set, is called exactly once when the session transitions
	// to Disconnected, with the error that caused it (nil for a clean
	// caller-initiated Close).
	OnClose func(error)
	// OnError, if set, is called for every transport-level error the
	// session observes, in addition to whatever OnClose reports for the
	// terminal one.
	OnError func(error)
}

func (c Config) path() string {
	if c.Path != "" {
		return c.Path
	}
	return "/engine.io/"
}

func (c Config) idGen() func() string {
	if c.IDGenerator != nil {
		return c.IDGenerator
	}
	return sid.IdBase64
}

func (c Config) dialOptions() dialOptions {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{}
		if c.TLSConfig != nil {
			client.Transport = &http.Transport{TLSClientConfig: c.TLSConfig}
		}
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = NewGorillaDialer(defaultGorillaDialer(c.TLSConfig))
	}
	return dialOptions{
		httpClient: client,
		dialer:     dialer,
		tlsConfig:  c.TLSConfig,
		headers:    c.Headers,
		idGen:      c.idGen(),
	}
}

// Session is the Engine.IO session layer (C3): handshake, transport
// selection and upgrade, heartbeat, and the connected-phase packet stream.
type Session struct {
	cfg    Config
	origin *url.URL
	path   string

	stateMu sync.RWMutex
	state   State

	connected int32 // atomic bool; 1 once the connected phase begins

	handshake HandshakeInfo

	transport Transport

	inbound chan Packet

	closeOnce sync.Once
	closeCh   chan struct{}

	errMu sync.Mutex
	err   error
}

// Connect performs the handshake, runs transport selection and any probe
// upgrade, and returns a Session in the connected phase. The context bounds
// only the wait for the probe response; the handshake GET and the WebSocket
// dial are not bound by it, and neither is the session's lifetime.
func Connect(ctx context.Context, rawURL string, cfg Config) (*Session, error) {
	origin, err := url.Parse(rawURL)
	if err != nil {
		return nil, &InvalidURLError{URL: rawURL, Message: err.Error()}
	}
	switch origin.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, &InvalidURLError{URL: rawURL, Message: "unsupported scheme " + origin.Scheme}
	}

	s := &Session{
		cfg:     cfg,
		origin:  origin,
		path:    cfg.path(),
		state:   StateHandshaking,
		inbound: make(chan Packet, 64),
		closeCh: make(chan struct{}),
	}

	opts := cfg.dialOptions()
	poll := newPollingTransport(opts, origin, s.path)

	handshake, firstPackets, err := performHandshake(poll)
	if err != nil {
		return nil, err
	}
	s.handshake = handshake
	if cfg.OnOpen != nil {
		cfg.OnOpen(handshake)
	}
	poll.setSID(handshake.SID)
	go poll.run()

	transport, err := s.selectTransport(ctx, opts, poll, cfg.TransportMode)
	if err != nil {
		poll.Close()
		return nil, err
	}
	s.transport = transport

	s.stateMu.Lock()
	s.state = StateConnected
	s.stateMu.Unlock()
	atomic.StoreInt32(&s.connected, 1)

	go s.dispatchLoop()

	// Replay any MESSAGE packets the handshake's first GET already
	// pulled off the wire (rare, but the spec doesn't forbid the server
	// from piggy-backing a MESSAGE on the handshake response). Packets of
	// other kinds in that response are dropped.
	for _, p := range firstPackets {
		if p.Kind == KindMessage {
			s.inbound <- p
		}
	}

	return s, nil
}

// performHandshake issues the first polling GET (no sid) and parses its
// leading OPEN packet.
func performHandshake(poll *pollingTransport) (HandshakeInfo, []Packet, error) {
	packets, err := poll.get()
	if err != nil {
		return HandshakeInfo{}, nil, err
	}
	if len(packets) == 0 || packets[0].Kind != KindOpen {
		return HandshakeInfo{}, nil, &HandshakeError{Message: "missing OPEN packet"}
	}
	var info HandshakeInfo
	if err := json.Unmarshal(packets[0].Body, &info); err != nil {
		return HandshakeInfo{}, nil, &HandshakeError{Message: "malformed handshake body: " + err.Error()}
	}
	if info.SID == "" {
		return HandshakeInfo{}, nil, &HandshakeError{Message: "handshake missing sid"}
	}
	return info, packets[1:], nil
}

func (s *Session) offersWebsocket() bool {
	for _, u := range s.handshake.Upgrades {
		if u == "websocket" {
			return true
		}
	}
	return false
}

func (s *Session) selectTransport(ctx context.Context, opts dialOptions, poll *pollingTransport, mode TransportMode) (Transport, error) {
	switch mode {
	case Polling:
		return poll, nil
	case Websocket:
		ws, err := dialWebsocket(opts.dialer, wsURL(s.origin, s.path, s.handshake.SID), headerFromMap(opts.headers))
		if err != nil {
			return nil, err
		}
		poll.Close()
		return ws, nil
	case Any, WebsocketUpgrade:
		if !s.offersWebsocket() {
			return poll, nil
		}
		return s.probeUpgrade(ctx, opts, poll)
	default:
		return poll, nil
	}
}

// probeUpgrade implements spec.md §4.3's probe sequence: open a WebSocket,
// PING "probe", expect PONG "probe", then send UPGRADE and stop polling.
func (s *Session) probeUpgrade(ctx context.Context, opts dialOptions, poll *pollingTransport) (Transport, error) {
	ws, err := dialWebsocket(opts.dialer, wsURL(s.origin, s.path, s.handshake.SID), headerFromMap(opts.headers))
	if err != nil {
		return nil, err
	}
	if err := ws.Send(newTextPacket(KindPing, "probe")); err != nil {
		ws.Close()
		return nil, err
	}

	select {
	case p, ok := <-ws.Inbound():
		if !ok {
			ws.Close()
			return nil, &IllegalWebsocketUpgradeError{Message: "connection closed before probe response: " + errString(ws.Err())}
		}
		if p.Kind != KindPong || string(p.Body) != "probe" {
			ws.Close()
			return nil, &IllegalWebsocketUpgradeError{Message: fmt.Sprintf("unexpected probe response kind=%s body=%q", p.Kind, p.Body)}
		}
	case <-ctx.Done():
		ws.Close()
		return nil, &IllegalWebsocketUpgradeError{Message: "timed out waiting for probe response"}
	}

	if err := ws.Send(Packet{Kind: KindUpgrade}); err != nil {
		ws.Close()
		return nil, err
	}

	// From this instant all traffic uses the WebSocket; stop the polling
	// loop and discard anything it already buffered.
	poll.Close()
	if glog.V(3) {
		glog.Infof("engineio: probe upgrade complete, sid=%s", s.handshake.SID)
	}
	return ws, nil
}

func errString(err error) string {
	if err == nil {
		return "none"
	}
	return err.Error()
}

func headerFromMap(m map[string]string) http.Header {
	h := http.Header{}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// Send writes an Engine.IO packet on the active transport.
func (s *Session) Send(p Packet) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return &ActionBeforeOpenError{Action: "send"}
	}
	return s.transport.Send(p)
}

// Inbound returns the stream of MESSAGE packets delivered to the layer
// above (C4). The channel closes when the session closes.
func (s *Session) Inbound() <-chan Packet {
	return s.inbound
}

// SID returns the server-assigned session id.
func (s *Session) SID() string {
	return s.handshake.SID
}

// Handshake returns the parsed OPEN packet body.
func (s *Session) Handshake() HandshakeInfo {
	return s.handshake
}

// State returns the session's current lifecycle position.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Err returns the error that caused the session to close, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close sends a CLOSE packet if the session is connected, then closes the
// underlying transport. Close is idempotent.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if atomic.LoadInt32(&s.connected) == 1 {
			_ = s.transport.Send(Packet{Kind: KindClose})
		}
		s.transitionClosing(nil)
		if s.transport != nil {
			closeErr = s.transport.Close()
		}
	})
	return closeErr
}

func (s *Session) transitionClosing(err error) {
	s.stateMu.Lock()
	if s.state == StateClosing || s.state == StateDisconnected {
		s.stateMu.Unlock()
		return
	}
	s.state = StateClosing
	s.stateMu.Unlock()

	if err != nil {
		s.errMu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.errMu.Unlock()
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
	}

	atomic.StoreInt32(&s.connected, 0)

	select {
	case <-s.closeCh:
	default:
		close(s.closeCh)
	}

	s.stateMu.Lock()
	s.state = StateDisconnected
	s.stateMu.Unlock()

	if s.cfg.OnClose != nil {
		s.cfg.OnClose(err)
	}
}

// dispatchLoop owns the connected-phase packet loop: it answers the
// heartbeat, forwards MESSAGE packets to Inbound, and watches for the
// heartbeat timeout described in spec.md §4.3.
func (s *Session) dispatchLoop() {
	defer close(s.inbound)

	interval := time.Duration(s.handshake.PingInterval) * time.Millisecond
	timeout := time.Duration(s.handshake.PingTimeout) * time.Millisecond
	if interval <= 0 {
		interval = 25 * time.Second
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	watchdog := time.NewTimer(interval + timeout)
	defer watchdog.Stop()

	for {
		select {
		case p, ok := <-s.transport.Inbound():
			if !ok {
				s.transitionClosing(s.transport.Err())
				return
			}
			switch p.Kind {
			case KindPing:
				if !watchdog.Stop() {
					drainTimer(watchdog)
				}
				watchdog.Reset(interval + timeout)
				if err := s.transport.Send(Packet{Kind: KindPong, Body: p.Body}); err != nil {
					if glog.V(3) {
						glog.Warningf("engineio: failed to answer heartbeat: %s", err)
					}
					if s.cfg.OnError != nil {
						s.cfg.OnError(err)
					}
				}
			case KindClose:
				s.transitionClosing(nil)
				return
			case KindMessage:
				select {
				case s.inbound <- p:
				case <-s.closeCh:
					return
				}
			case KindOpen, KindUpgrade, KindNoop:
				// no action required in the connected phase
			}
		case <-watchdog.C:
			s.transitionClosing(&TimeoutError{Message: "no heartbeat PING within pingInterval+pingTimeout"})
			return
		case <-s.closeCh:
			return
		}
	}
}

func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
