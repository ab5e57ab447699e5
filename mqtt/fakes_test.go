package mqtt

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"keypanel/fault/faulttest"
	"keypanel/kernel"
)

type call struct {
	op      string
	topic   string
	payload string
	qos     QoS
	retain  bool
	info    ConnectInfo
}

// fakeEngine records every call. Inbound publishes queued with inject are
// delivered one per ProcessLoop.
type fakeEngine struct {
	mu        sync.Mutex
	calls     []call
	onPublish PublishFunc
	pending   [][2]string

	publishErr error
	processErr error
	processed  int
}

func (e *fakeEngine) record(c call) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()
}

func (e *fakeEngine) Init(t Transport, clock kernel.Clock, onPublish PublishFunc) error {
	e.mu.Lock()
	e.onPublish = onPublish
	e.mu.Unlock()
	e.record(call{op: "init"})
	return nil
}

func (e *fakeEngine) Connect(info ConnectInfo, timeout time.Duration) error {
	cp := ConnectInfo{
		ClientID:  append([]byte(nil), info.ClientID...),
		Username:  append([]byte(nil), info.Username...),
		Password:  append([]byte(nil), info.Password...),
		KeepAlive: info.KeepAlive,
	}
	if info.Will != nil {
		w := *info.Will
		w.Topic = append([]byte(nil), w.Topic...)
		w.Payload = append([]byte(nil), w.Payload...)
		cp.Will = &w
	}
	e.record(call{op: "connect", info: cp})
	return nil
}

func (e *fakeEngine) Publish(topic, payload []byte, qos QoS, retain bool) error {
	e.record(call{op: "publish", topic: string(topic), payload: string(payload), qos: qos, retain: retain})
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.publishErr
}

func (e *fakeEngine) Subscribe(filter []byte, qos QoS) error {
	e.record(call{op: "subscribe", topic: string(filter), qos: qos})
	return nil
}

func (e *fakeEngine) ProcessLoop() error {
	e.mu.Lock()
	e.processed++
	err := e.processErr
	var next *[2]string
	if len(e.pending) > 0 {
		next = &e.pending[0]
		e.pending = e.pending[1:]
	}
	fn := e.onPublish
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if next != nil {
		fn([]byte(next[0]), []byte(next[1]))
	}
	return nil
}

func (e *fakeEngine) inject(topic, payload string) {
	e.mu.Lock()
	e.pending = append(e.pending, [2]string{topic, payload})
	e.mu.Unlock()
}

func (e *fakeEngine) snapshot() []call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]call(nil), e.calls...)
}

func (e *fakeEngine) ops(op string) []call {
	var out []call
	for _, c := range e.snapshot() {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type pipeDialer struct {
	mu    sync.Mutex
	peers []net.Conn
}

func (d *pipeDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	a, b := net.Pipe()
	d.mu.Lock()
	d.peers = append(d.peers, b)
	d.mu.Unlock()
	return a, nil
}

type flashRecorder struct {
	mu      sync.Mutex
	flashes []uint32
}

func (f *flashRecorder) Flash(ms uint32) {
	f.mu.Lock()
	f.flashes = append(f.flashes, ms)
	f.mu.Unlock()
}

func (f *flashRecorder) get() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.flashes...)
}

type harness struct {
	client *Client
	engine *fakeEngine
	faults *faulttest.Recorder
	flash  *flashRecorder
	loop   *Loop
}

func newHarness(t *testing.T, cmdDepth, inboundDepth int) *harness {
	t.Helper()
	faults := faulttest.New()
	c, err := NewClient(DefaultLimits(), cmdDepth, inboundDepth, faults)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	e := &fakeEngine{}
	flash := &flashRecorder{}
	l := NewLoop(c, e, &pipeDialer{}, kernel.NewMonotonicClock(), faults, flash,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		LoopConfig{Broker: "broker:1883", Poll: 5 * time.Millisecond, ConnectTimeout: time.Second, KeepAlive: 10 * time.Second})
	return &harness{client: c, engine: e, faults: faults, flash: flash, loop: l}
}

// run steps the loop on its own goroutine until the returned func is called
// or the loop faults.
func (h *harness) run() (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			default:
			}
			h.loop.Step()
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
