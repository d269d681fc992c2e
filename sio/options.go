package sio

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/corvid-labs/socketio-client/engineio"
)

// config collects every knob an Option can set before NewClient builds the
// engineio.Config a Connect call will use.
type config struct {
	namespace     string
	transportMode engineio.TransportMode
	tlsConfig     *tls.Config
	headers       map[string]string
	httpClient    *http.Client
	dialer        engineio.WSDialer
	reconnect     ReconnectPolicy
}

// Option configures a Client at construction time. The functional-options
// form is used instead of a fluent builder so a NewClient call with no
// options still yields a usable Client and so additional knobs can be added
// without breaking callers.
type Option func(*config)

// WithNamespace selects the Socket.IO namespace the client joins. Defaults
// to "/".
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithTransportMode overrides the Engine.IO transport selection strategy.
// Defaults to engineio.Any (probe upgrade to WebSocket when offered).
func WithTransportMode(mode engineio.TransportMode) Option {
	return func(c *config) { c.transportMode = mode }
}

// WithTLSConfig applies a TLS configuration to the default HTTP client and
// WebSocket dialer.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) { c.tlsConfig = tlsConfig }
}

// WithHeader adds a header to every outgoing handshake, polling, and
// WebSocket-upgrade request.
func WithHeader(key, value string) Option {
	return func(c *config) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// WithHTTPClient overrides the *http.Client used for long-polling.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(dialer engineio.WSDialer) Option {
	return func(c *config) { c.dialer = dialer }
}

// WithReconnect records policy in the client's configuration. NewClient does
// not read it, and a Client never reconnects on its own: reconnection
// happens only through a Reconnector built with NewReconnector, which takes
// its policy as an argument.
func WithReconnect(policy ReconnectPolicy) Option {
	return func(c *config) { c.reconnect = policy }
}

// ReconnectPolicy controls whether and how a Reconnector retries after the
// underlying Engine.IO session ends for a reason other than a caller's own
// Disconnect call.
type ReconnectPolicy struct {
	Enabled     bool
	MaxAttempts int // 0 means unlimited
	Backoff     func(attempt int) time.Duration
}
