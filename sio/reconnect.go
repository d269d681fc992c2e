package sio

import (
	"context"
	"sync"
	"time"
)

// Reconnector wraps a Client factory and reopens the connection whenever
// the current Client's session ends for a reason other than the caller's
// own Disconnect call.
type Reconnector struct {
	factory func() (*Client, error)
	policy  ReconnectPolicy

	mu      sync.Mutex
	current *Client
	stopped bool
}

// NewReconnector builds a Reconnector that rebuilds a fresh Client from
// factory on every reconnect attempt (a Client cannot be reused across
// Connect calls once its session has closed).
func NewReconnector(policy ReconnectPolicy, factory func() (*Client, error)) *Reconnector {
	return &Reconnector{factory: factory, policy: policy}
}

// Start builds and connects the first Client, then watches it for
// unsolicited disconnects in the background.
func (r *Reconnector) Start(ctx context.Context) (*Client, error) {
	client, err := r.factory()
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.current = client
	r.mu.Unlock()
	go r.watch(ctx, client, 0)
	return client, nil
}

// Client returns the currently active Client, which changes across
// reconnect attempts.
func (r *Reconnector) Client() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stop prevents any further reconnect attempt. It does not close the
// current Client.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *Reconnector) watch(ctx context.Context, client *Client, startAttempt int) {
	current := client
	attempt := startAttempt
	for {
		<-current.Done()
		if current.closedByUser() || !r.policy.Enabled {
			return
		}

		r.mu.Lock()
		stopped := r.stopped
		r.mu.Unlock()
		if stopped {
			return
		}
		if r.policy.MaxAttempts > 0 && attempt >= r.policy.MaxAttempts {
			return
		}
		attempt++

		delay := time.Second
		if r.policy.Backoff != nil {
			delay = r.policy.Backoff(attempt)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		next, err := r.factory()
		if err != nil {
			continue
		}
		if err := next.Connect(ctx); err != nil {
			continue
		}
		r.mu.Lock()
		r.current = next
		r.mu.Unlock()
		attempt = 0
		current = next
	}
}
