package engineio

import "net/http"

// doClient is fulfilled by *http.Client. Injecting it lets tests replace the
// long-polling transport's HTTP stack with a fake.
type doClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WSConn is fulfilled by *websocket.Conn. Injecting it lets tests replace
// the WebSocket backend with a fake connection.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WSDialer is fulfilled by *websocket.Dialer. Injecting it lets tests
// replace the dial step without opening a real socket.
type WSDialer interface {
	Dial(urlStr string, requestHeader http.Header) (WSConn, *http.Response, error)
}
