package engineio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
)

// pollingTransport is the long-polling Transport backend (C2). GETs run in
// a continuous loop on their own goroutine, producing into Inbound(); POSTs
// are serialized so at most one is outstanding at a time.
type pollingTransport struct {
	client  doClient
	origin  *url.URL
	path    string
	headers map[string]string
	idGen   func() string

	sidMu sync.Mutex
	sid   string

	postMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	inbound chan Packet

	errMu sync.Mutex
	err   error
}

func newPollingTransport(opts dialOptions, origin *url.URL, path string) *pollingTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingTransport{
		client:  opts.httpClient,
		origin:  origin,
		path:    path,
		headers: opts.headers,
		idGen:   opts.idGen,
		inbound: make(chan Packet, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (t *pollingTransport) setSID(sid string) {
	t.sidMu.Lock()
	t.sid = sid
	t.sidMu.Unlock()
}

func (t *pollingTransport) url() string {
	u := *t.origin
	u.Path = t.path
	values := u.Query()
	values.Set("EIO", "4")
	values.Set("transport", "polling")
	t.sidMu.Lock()
	sid := t.sid
	t.sidMu.Unlock()
	if sid != "" {
		values.Set("sid", sid)
	}
	values.Set("t", t.idGen())
	u.RawQuery = values.Encode()
	return u.String()
}

func (t *pollingTransport) newRequest(method string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	urlStr := t.url()
	req, err := http.NewRequest(method, urlStr, reader)
	if err != nil {
		return nil, &InvalidURLError{URL: urlStr, Message: err.Error()}
	}
	req = req.WithContext(t.ctx)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// get performs a single polling GET and returns the decoded packets in the
// response body.
func (t *pollingTransport) get() ([]Packet, error) {
	req, err := t.newRequest(http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportIOError{Cause: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportIOError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, URL: req.URL.String()}
	}
	return DecodeHTTPStream(body)
}

// post sends one or more packets in a single POST body. Concurrent callers
// serialize on postMu so at most one POST is outstanding.
func (t *pollingTransport) post(packets []Packet) error {
	t.postMu.Lock()
	defer t.postMu.Unlock()
	req, err := t.newRequest(http.MethodPost, JoinHTTP(packets))
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportIOError{Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, URL: req.URL.String()}
	}
	return nil
}

func (t *pollingTransport) Send(p Packet) error {
	return t.post([]Packet{p})
}

func (t *pollingTransport) Inbound() <-chan Packet {
	return t.inbound
}

func (t *pollingTransport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *pollingTransport) setErr(err error) {
	t.errMu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.errMu.Unlock()
}

// run drives the continuous GET loop until Close cancels it or a fatal
// HTTP/transport error occurs.
func (t *pollingTransport) run() {
	defer close(t.inbound)
	for {
		packets, err := t.get()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			if glog.V(3) {
				glog.Warningf("engineio: polling GET failed: %s", err)
			}
			t.setErr(err)
			return
		}
		for _, p := range packets {
			select {
			case t.inbound <- p:
			case <-t.ctx.Done():
				return
			}
		}
	}
}

func (t *pollingTransport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
	})
	return nil
}
