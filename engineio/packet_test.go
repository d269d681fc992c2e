package engineio_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	. "github.com/corvid-labs/socketio-client/engineio"
)

func TestPacketCodec(t *testing.T) {
	Convey("The Engine.IO packet codec should", t, func() {
		Convey("round-trip every kind through the HTTP encoding", func() {
			for _, p := range []Packet{
				{Kind: KindOpen, Body: []byte(`{"sid":"abc"}`)},
				{Kind: KindClose},
				{Kind: KindPing, Body: []byte("probe")},
				{Kind: KindPong, Body: []byte("probe")},
				{Kind: KindMessage, Body: []byte("hello")},
				{Kind: KindUpgrade},
				{Kind: KindNoop},
			} {
				encoded := EncodeHTTP(p)
				decoded, err := DecodeHTTPStream(encoded)
				So(err, ShouldBeNil)
				So(decoded, ShouldHaveLength, 1)
				So(decoded[0].Kind, ShouldEqual, p.Kind)
				So(decoded[0].Body, ShouldResemble, p.Body)
			}
		})

		Convey("round-trip a binary MESSAGE through the HTTP base64 form", func() {
			p := Packet{Kind: KindMessage, Binary: true, Body: []byte{0x00, 0x01, 0xff, 0xfe}}
			decoded, err := DecodeHTTPStream(EncodeHTTP(p))
			So(err, ShouldBeNil)
			So(decoded, ShouldHaveLength, 1)
			So(decoded[0].Binary, ShouldBeTrue)
			So(decoded[0].Body, ShouldResemble, p.Body)
		})

		Convey("decode an empty polling body as zero packets without error", func() {
			packets, err := DecodeHTTPStream(nil)
			So(err, ShouldBeNil)
			So(packets, ShouldBeEmpty)
		})

		Convey("join and split multiple packets on the record separator", func() {
			packets := []Packet{
				{Kind: KindMessage, Body: []byte("one")},
				{Kind: KindMessage, Body: []byte("two")},
				{Kind: KindMessage, Binary: true, Body: []byte{1, 2, 3}},
			}
			joined := JoinHTTP(packets)
			decoded, err := DecodeHTTPStream(joined)
			So(err, ShouldBeNil)
			if diff := cmp.Diff(packets, decoded); diff != "" {
				t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
			}
		})

		Convey("reject an unknown kind digit", func() {
			_, err := DecodeHTTPStream([]byte("9hello"))
			So(err, ShouldNotBeNil)
		})

		Convey("round-trip text and binary MESSAGE packets through the WebSocket frame encoding", func() {
			text := Packet{Kind: KindMessage, Body: []byte("hi")}
			frame := EncodeWSFrame(text)
			So(frame.Binary, ShouldBeFalse)
			decoded, err := DecodeWSFrame(frame)
			So(err, ShouldBeNil)
			So(decoded, ShouldResemble, text)

			binary := Packet{Kind: KindMessage, Binary: true, Body: []byte{9, 8, 7}}
			frame = EncodeWSFrame(binary)
			So(frame.Binary, ShouldBeTrue)
			decoded, err = DecodeWSFrame(frame)
			So(err, ShouldBeNil)
			So(decoded, ShouldResemble, binary)
		})

		Convey("reject a binary frame missing its message tag", func() {
			_, err := DecodeWSFrame(Frame{Binary: true, Data: []byte{}})
			So(err, ShouldNotBeNil)
		})
	})
}
