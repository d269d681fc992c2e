package engineio

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// defaultGorillaDialer builds a *websocket.Dialer carrying the given TLS
// configuration, used when a Config doesn't inject its own Dialer.
func defaultGorillaDialer(tlsConfig *tls.Config) *websocket.Dialer {
	return &websocket.Dialer{TLSClientConfig: tlsConfig}
}

// gorillaDialer adapts *websocket.Dialer to WSDialer.
type gorillaDialer struct {
	dialer *websocket.Dialer
}

func (g *gorillaDialer) Dial(urlStr string, header http.Header) (WSConn, *http.Response, error) {
	conn, resp, err := g.dialer.Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// NewGorillaDialer wraps a *websocket.Dialer as a WSDialer. Callers that
// want a custom TLS configuration or proxy should build the Dialer
// themselves and wrap it with this function.
func NewGorillaDialer(dialer *websocket.Dialer) WSDialer {
	return &gorillaDialer{dialer: dialer}
}

// wsURL rewrites an http(s) origin into a ws(s) Engine.IO endpoint URL
// carrying transport=websocket and, once known, sid.
func wsURL(origin *url.URL, path, sid string) string {
	u := *origin
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = path
	values := u.Query()
	values.Set("EIO", "4")
	values.Set("transport", "websocket")
	if sid != "" {
		values.Set("sid", sid)
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// wsTransport is the WebSocket Transport backend (C2).
type wsTransport struct {
	conn    WSConn
	inbound chan Packet

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex // guards writes and err; WSConn is not safe for concurrent writers
	err     error
	errOnce sync.Once
}

func dialWebsocket(dialer WSDialer, urlStr string, header http.Header) (*wsTransport, error) {
	conn, _, err := dialer.Dial(urlStr, header)
	if err != nil {
		return nil, &TransportIOError{Cause: err}
	}
	t := &wsTransport{
		conn:    conn,
		inbound: make(chan Packet, 16),
	}
	go t.readLoop()
	return t, nil
}

func (t *wsTransport) readLoop() {
	defer close(t.inbound)
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			t.setErr(&TransportIOError{Cause: err})
			return
		}
		frame := Frame{Binary: kind == websocket.BinaryMessage, Data: data}
		packet, err := DecodeWSFrame(frame)
		if err != nil {
			t.setErr(err)
			return
		}
		if glog.V(5) {
			glog.Infof("engineio: ws received packet kind=%s binary=%v len=%d", packet.Kind, packet.Binary, len(packet.Body))
		}
		t.inbound <- packet
	}
}

func (t *wsTransport) setErr(err error) {
	t.errOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	})
}

func (t *wsTransport) Send(p Packet) error {
	frame := EncodeWSFrame(p)
	t.mu.Lock()
	defer t.mu.Unlock()
	wsKind := websocket.TextMessage
	if frame.Binary {
		wsKind = websocket.BinaryMessage
	}
	if err := t.conn.WriteMessage(wsKind, frame.Data); err != nil {
		return &TransportIOError{Cause: err}
	}
	return nil
}

func (t *wsTransport) Inbound() <-chan Packet {
	return t.inbound
}

func (t *wsTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
