package engineio

import (
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeResponse struct {
	resp *http.Response
	err  error
}

type fakeDoClient struct {
	requests  []*http.Request
	responses []*fakeResponse
	next      int
}

func (f *fakeDoClient) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if f.next < len(f.responses) {
		r := f.responses[f.next]
		f.next++
		if r.err != nil {
			return nil, r.err
		}
		return r.resp, nil
	}
	// Once the canned responses are exhausted, behave like a long-poll GET
	// that blocks until the caller cancels it.
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func textResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Body:       ioutil.NopCloser(strings.NewReader(body)),
	}
}

func TestPollingTransport(t *testing.T) {
	Convey("The polling transport should", t, func() {
		origin, _ := url.Parse("http://example.com")

		Convey("decode packets from a successful GET", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: textResponse("4hello")}}}
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			pt := newPollingTransport(opts, origin, "/engine.io/")
			packets, err := pt.get()
			So(err, ShouldBeNil)
			So(packets, ShouldHaveLength, 1)
			So(packets[0].Kind, ShouldEqual, KindMessage)
			So(string(packets[0].Body), ShouldEqual, "hello")
		})

		Convey("surface an HTTPError on a non-2xx response", func() {
			resp := textResponse("")
			resp.StatusCode = 500
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: resp}}}
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			pt := newPollingTransport(opts, origin, "/engine.io/")
			_, err := pt.get()
			So(err, ShouldNotBeNil)
			_, ok := err.(*HTTPError)
			So(ok, ShouldBeTrue)
		})

		Convey("stop the GET loop cleanly on Close, without recording an error", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: textResponse("")}}}
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			pt := newPollingTransport(opts, origin, "/engine.io/")
			go pt.run()
			time.Sleep(20 * time.Millisecond)
			So(pt.Close(), ShouldBeNil)
			_, ok := <-pt.Inbound()
			So(ok, ShouldBeFalse)
			So(pt.Err(), ShouldBeNil)
		})

		Convey("serialize concurrent Send calls through postMu", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{
				{resp: textResponse("")},
				{resp: textResponse("")},
			}}
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			pt := newPollingTransport(opts, origin, "/engine.io/")
			done := make(chan error, 2)
			go func() { done <- pt.Send(Packet{Kind: KindMessage, Body: []byte("a")}) }()
			go func() { done <- pt.Send(Packet{Kind: KindMessage, Body: []byte("b")}) }()
			So(<-done, ShouldBeNil)
			So(<-done, ShouldBeNil)
			So(fdc.requests, ShouldHaveLength, 2)
		})

		Convey("set and include the sid once the handshake completes", func() {
			fdc := &fakeDoClient{responses: []*fakeResponse{{resp: textResponse("")}}}
			opts := dialOptions{httpClient: fdc, idGen: func() string { return "1" }}
			pt := newPollingTransport(opts, origin, "/engine.io/")
			pt.setSID("abc123")
			_, _ = pt.get()
			So(fdc.requests, ShouldHaveLength, 1)
			So(fdc.requests[0].URL.Query().Get("sid"), ShouldEqual, "abc123")
		})
	})
}
