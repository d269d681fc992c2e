package sio_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corvid-labs/socketio-client/engineio"
	. "github.com/corvid-labs/socketio-client/sio"
)

func TestEncode(t *testing.T) {
	Convey("Encode should", t, func() {
		Convey("emit one header MESSAGE for a non-binary packet", func() {
			frames := Encode(Packet{Kind: KindEvent, Nsp: "/", Data: `["ping"]`})
			So(frames, ShouldHaveLength, 1)
			So(frames[0].Kind, ShouldEqual, engineio.KindMessage)
			So(string(frames[0].Body), ShouldEqual, `2["ping"]`)
		})

		Convey("emit a header MESSAGE plus one binary MESSAGE per attachment", func() {
			frames := Encode(Packet{
				Kind:            KindBinaryEvent,
				Nsp:             "/",
				Data:            `["img"]`,
				Attachments:     [][]byte{{1, 2, 3}},
				AttachmentCount: 1,
			})
			So(frames, ShouldHaveLength, 2)
			So(frames[0].Binary, ShouldBeFalse)
			So(frames[1].Binary, ShouldBeTrue)
			So(frames[1].Body, ShouldResemble, []byte{1, 2, 3})
		})
	})
}

func TestDecoder(t *testing.T) {
	Convey("Decoder should", t, func() {
		Convey("surface a non-binary packet immediately", func() {
			d := NewDecoder()
			p, err := d.Feed(engineio.Packet{Kind: engineio.KindMessage, Body: []byte(`2["ping"]`)})
			So(err, ShouldBeNil)
			So(p, ShouldNotBeNil)
			So(p.Kind, ShouldEqual, KindEvent)
		})

		Convey("buffer a BINARY_EVENT header until all attachments arrive", func() {
			d := NewDecoder()
			p, err := d.Feed(engineio.Packet{Kind: engineio.KindMessage, Body: []byte(`51-/admin,["img"]`)})
			So(err, ShouldBeNil)
			So(p, ShouldBeNil)

			p, err = d.Feed(engineio.Packet{Kind: engineio.KindMessage, Binary: true, Body: []byte{1, 2, 3}})
			So(err, ShouldBeNil)
			So(p, ShouldNotBeNil)
			So(p.Kind, ShouldEqual, KindBinaryEvent)
			So(p.Attachments, ShouldHaveLength, 1)
			So(p.Attachments[0], ShouldResemble, []byte{1, 2, 3})
		})

		Convey("reject a binary frame with nothing pending", func() {
			d := NewDecoder()
			_, err := d.Feed(engineio.Packet{Kind: engineio.KindMessage, Binary: true, Body: []byte{1}})
			So(err, ShouldNotBeNil)
		})

		Convey("reject a text header arriving mid-reassembly", func() {
			d := NewDecoder()
			_, err := d.Feed(engineio.Packet{Kind: engineio.KindMessage, Body: []byte(`51-["img"]`)})
			So(err, ShouldBeNil)
			_, err = d.Feed(engineio.Packet{Kind: engineio.KindMessage, Body: []byte("2[]")})
			So(err, ShouldNotBeNil)
		})
	})
}
