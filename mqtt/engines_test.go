//go:build !tinygo

package mqtt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"keypanel/kernel"
	"keypanel/transport"
)

// testBroker speaks just enough MQTT 3.1.1 to take one client through
// connect, subscribe and publish at every QoS.
type testBroker struct {
	ln net.Listener

	wmu  sync.Mutex
	peer net.Conn

	subscribed chan string
	published  chan string
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &testBroker{
		ln:         ln,
		subscribed: make(chan string, 8),
		published:  make(chan string, 64),
	}
	go b.serve()
	t.Cleanup(func() {
		ln.Close()
		b.wmu.Lock()
		if b.peer != nil {
			b.peer.Close()
		}
		b.wmu.Unlock()
	})
	return b
}

func (b *testBroker) serve() {
	c, err := b.ln.Accept()
	if err != nil {
		return
	}
	b.wmu.Lock()
	b.peer = c
	b.wmu.Unlock()

	r := bufio.NewReader(c)
	for {
		head, body, err := readPacket(r)
		if err != nil {
			return
		}
		switch head >> 4 {
		case 1: // CONNECT
			b.write(0x20, 0x00, 0x00)
		case 8: // SUBSCRIBE
			n := binary.BigEndian.Uint16(body[2:])
			filter := string(body[4 : 4+n])
			qos := body[4+n] & 0x03
			b.write(0x90, body[0], body[1], qos)
			b.subscribed <- filter
		case 3: // PUBLISH
			qos := (head >> 1) & 0x03
			n := int(binary.BigEndian.Uint16(body))
			topic := string(body[2 : 2+n])
			rest := body[2+n:]
			var id []byte
			if qos > 0 {
				id, rest = rest[:2], rest[2:]
			}
			switch qos {
			case 1:
				b.write(0x40, id[0], id[1])
			case 2:
				b.write(0x50, id[0], id[1])
			}
			b.published <- topic + "=" + string(rest)
		case 6: // PUBREL
			b.write(0x70, body[0], body[1])
		case 12: // PINGREQ
			b.write(0xD0)
		case 14: // DISCONNECT
			return
		}
	}
}

func readPacket(r *bufio.Reader) (byte, []byte, error) {
	head, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return head, body, nil
}

// write sends a packet whose body is small enough for a one-byte length.
func (b *testBroker) write(head byte, body ...byte) {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if b.peer != nil {
		_, _ = b.peer.Write(append([]byte{head, byte(len(body))}, body...))
	}
}

// push sends a QoS 0 publish to the client.
func (b *testBroker) push(topic, payload string) {
	body := binary.BigEndian.AppendUint16(nil, uint16(len(topic)))
	body = append(body, topic...)
	body = append(body, payload...)
	b.write(0x30, body...)
}

func (b *testBroker) expect(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("broker saw %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("broker never saw %q", want)
	}
}

type inboundLog struct {
	mu  sync.Mutex
	got []string
}

func (l *inboundLog) record(topic, payload []byte) {
	l.mu.Lock()
	l.got = append(l.got, string(topic)+"="+string(payload))
	l.mu.Unlock()
}

func (l *inboundLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}

// connectEngine opens an adapter to b and takes e through Init and Connect.
func connectEngine(t *testing.T, b *testBroker, e Engine, in *inboundLog) {
	t.Helper()
	conn, err := net.Dial("tcp", b.ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	tr := transport.NewAdapter(conn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { tr.Close() })

	if err := e.Init(tr, kernel.NewMonotonicClock(), in.record); err != nil {
		t.Fatalf("Init: %v", err)
	}
	info := ConnectInfo{ClientID: []byte("panel"), KeepAlive: 30 * time.Second}
	if err := e.Connect(info, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func drainInbound(t *testing.T, e Engine, in *inboundLog, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(in.snapshot()) < want {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %v, want %d publishes", in.snapshot(), want)
		}
		if err := e.ProcessLoop(); err != nil {
			t.Fatalf("ProcessLoop: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	return in.snapshot()
}

func TestEnginesRoundTripOverAdapter(t *testing.T) {
	for _, name := range Engines() {
		t.Run(name, func(t *testing.T) {
			b := newTestBroker(t)
			e, err := NewEngine(name, EngineConfig{IOTimeout: 2 * time.Second})
			if err != nil {
				t.Fatalf("NewEngine(%q): %v", name, err)
			}
			in := &inboundLog{}
			connectEngine(t, b, e, in)

			if err := e.Subscribe([]byte("a/#"), QoS0); err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			b.expect(t, b.subscribed, "a/#")

			if err := e.Publish([]byte("a/state"), []byte("on"), QoS0, false); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			b.expect(t, b.published, "a/state=on")

			b.push("a/b", "hi")
			got := drainInbound(t, e, in, 1)
			if got[0] != "a/b=hi" {
				t.Fatalf("delivered %q, want %q", got[0], "a/b=hi")
			}
		})
	}
}

func TestPahoBurstDoesNotStallAcks(t *testing.T) {
	const inbox, burst = 4, 25

	b := newTestBroker(t)
	e := NewPaho(EngineConfig{Inbox: inbox, IOTimeout: 2 * time.Second})
	in := &inboundLog{}
	connectEngine(t, b, e, in)

	if err := e.Subscribe([]byte("x/led/cmd/#"), QoS1); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	b.expect(t, b.subscribed, "x/led/cmd/#")

	for i := 0; i < burst; i++ {
		b.push(fmt.Sprintf("x/led/cmd/%d", i%16), fmt.Sprint(i))
	}
	if err := e.ProcessLoop(); err != nil {
		t.Fatalf("ProcessLoop: %v", err)
	}
	if err := e.Publish([]byte("x/led/state/0"), []byte("ON"), QoS2, true); err != nil {
		t.Fatalf("Publish(QoS2) after burst: %v", err)
	}
	b.expect(t, b.published, "x/led/state/0=ON")

	got := drainInbound(t, e, in, burst)
	for i, m := range got {
		if want := fmt.Sprintf("x/led/cmd/%d=%d", i%16, i); m != want {
			t.Fatalf("delivered[%d] = %q, want %q", i, m, want)
		}
	}
}
