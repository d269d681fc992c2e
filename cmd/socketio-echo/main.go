// Command socketio-echo connects to a Socket.IO server, echoes every event
// it receives to stdout, and optionally emits one event before listening.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/corvid-labs/socketio-client/sio"
	"github.com/golang/glog"
)

func main() {
	url := flag.String("url", "http://localhost:3000", "Socket.IO server base URL")
	namespace := flag.String("namespace", "/", "namespace to join")
	emitEvent := flag.String("emit-event", "", "if set, emit this event once after connecting")
	emitData := flag.String("emit-data", "null", "JSON payload for -emit-event")
	listen := flag.Duration("listen", 30*time.Second, "how long to listen before exiting")
	flag.Parse()

	client, err := sio.NewClient(*url, sio.WithNamespace(*namespace))
	if err != nil {
		glog.Exitf("socketio-echo: %s", err)
	}

	client.On(sio.OnConnect, func(_ sio.Payload, c *sio.Client) {
		fmt.Printf("connected to %s%s\n", *url, c.Namespace())
	})
	client.On(sio.OnClose, func(_ sio.Payload, _ *sio.Client) {
		fmt.Println("disconnected")
	})
	client.On(sio.OnError, func(p sio.Payload, _ *sio.Client) {
		fmt.Printf("error: %s\n", p.Text)
	})
	client.On(sio.OnMessage, func(p sio.Payload, _ *sio.Client) {
		printPayload("message", p)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		glog.Exitf("socketio-echo: connect failed: %s", err)
	}
	defer client.Disconnect()

	if *emitEvent != "" {
		if err := client.Emit(*emitEvent, sio.TextPayload(*emitData)); err != nil {
			glog.Errorf("socketio-echo: emit %q failed: %s", *emitEvent, err)
		}
	}

	timeout := time.NewTimer(*listen)
	defer timeout.Stop()
	for {
		select {
		case p, ok := <-client.Packets():
			if !ok {
				return
			}
			if glog.V(3) {
				glog.Infof("socketio-echo: raw packet kind=%s id=%v", p.Kind, p.ID)
			}
		case <-timeout.C:
			return
		case <-client.Done():
			return
		}
	}
}

func printPayload(label string, p sio.Payload) {
	if p.Kind == sio.PayloadBinary {
		fmt.Printf("%s: <%d bytes binary>\n", label, len(p.Binary))
		return
	}
	fmt.Printf("%s: %s\n", label, p.Text)
}
