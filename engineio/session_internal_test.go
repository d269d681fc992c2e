package engineio

import (
	"context"
	"net/url"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/gorilla/websocket"
)

var handshakeBody = `0{"sid":"N1pkgEHs-wEXi4DtAA4m","upgrades":["websocket"],"pingInterval":5000,"pingTimeout":10000}`

func TestSessionConnect(t *testing.T) {
	Convey("Connect should", t, func() {
		Convey("perform the handshake, probe-upgrade to WebSocket, and deliver messages", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: textResponse(handshakeBody)}}}
			wsConn := &fakeWSConn{toReturn: []fakeWSMessage{
				{kind: websocket.TextMessage, data: []byte("3probe")},
				{kind: websocket.TextMessage, data: []byte("4hello")},
			}}
			cfg := Config{Dialer: &fakeWSDialer{conn: wsConn}}

			opts := dialOptions{httpClient: fdc, dialer: cfg.Dialer, idGen: func() string { return "1" }}
			origin, err := url.Parse("http://example.com")
			So(err, ShouldBeNil)
			s := &Session{cfg: cfg, origin: origin, path: "/engine.io/", state: StateHandshaking, inbound: make(chan Packet, 64), closeCh: make(chan struct{})}

			poll := newPollingTransport(opts, origin, s.path)
			handshake, _, err := performHandshake(poll)
			So(err, ShouldBeNil)
			So(handshake.SID, ShouldEqual, "N1pkgEHs-wEXi4DtAA4m")
			s.handshake = handshake
			poll.setSID(handshake.SID)

			transport, err := s.selectTransport(context.Background(), opts, poll, Any)
			So(err, ShouldBeNil)
			s.transport = transport
			s.state = StateConnected

			go s.dispatchLoop()

			select {
			case p := <-s.Inbound():
				So(string(p.Body), ShouldEqual, "hello")
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for message")
			}

			wsConn.mu.Lock()
			So(wsConn.written, ShouldHaveLength, 2) // probe ping, upgrade
			wsConn.mu.Unlock()

			So(s.Close(), ShouldBeNil)
		})

		Convey("reject a URL with an unsupported scheme", func() {
			_, err := Connect(context.Background(), "ftp://example.com", Config{})
			So(err, ShouldNotBeNil)
			_, ok := err.(*InvalidURLError)
			So(ok, ShouldBeTrue)
		})

		Convey("fail the handshake when the first packet is not an OPEN packet", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: textResponse("4notopen")}}}
			origin, err := url.Parse("http://example.com")
			So(err, ShouldBeNil)
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			poll := newPollingTransport(opts, origin, "/engine.io/")
			_, _, err = performHandshake(poll)
			So(err, ShouldNotBeNil)
			_, ok := err.(*HandshakeError)
			So(ok, ShouldBeTrue)
		})
	})
}
