package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubmitPublishOverCapacityFaults(t *testing.T) {
	h := newHarness(t, 4, 4)

	go h.client.SubmitPublish([]byte(strings.Repeat("t", 41)), []byte("x"), QoS0, false)
	if got := h.faults.Wait(t, time.Second); !strings.Contains(got, "topic exceeds capacity") {
		t.Fatalf("fault = %q, want topic exceeds capacity", got)
	}
	if n := h.client.Pending(); n != 0 {
		t.Fatalf("Pending() = %d, want 0", n)
	}

	go h.client.SubmitPublish([]byte("t"), make([]byte, 201), QoS0, false)
	if got := h.faults.Wait(t, time.Second); !strings.Contains(got, "payload exceeds capacity") {
		t.Fatalf("fault = %q, want payload exceeds capacity", got)
	}

	go h.client.SubmitConnect([]byte("id"), nil, nil, &Will{Topic: []byte("w"), Payload: make([]byte, 201)})
	if got := h.faults.Wait(t, time.Second); !strings.Contains(got, "will payload exceeds capacity") {
		t.Fatalf("fault = %q, want will payload exceeds capacity", got)
	}
}

func TestSubmitAtCapacityIsByteIdentical(t *testing.T) {
	h := newHarness(t, 4, 4)
	topic := []byte(strings.Repeat("a", 40))
	payload := []byte(strings.Repeat("b", 200))

	h.client.SubmitPublish(topic, payload, QoS2, true)
	topic[0], payload[0] = 'X', 'X'

	stop := h.run()
	waitFor(t, "publish", func() bool { return len(h.engine.ops("publish")) == 1 })
	stop()

	got := h.engine.ops("publish")[0]
	if got.topic != strings.Repeat("a", 40) {
		t.Fatalf("topic = %q, want 40 x a", got.topic)
	}
	if got.payload != strings.Repeat("b", 200) {
		t.Fatalf("payload = %q, want 200 x b", got.payload)
	}
	if got.qos != QoS2 || !got.retain {
		t.Fatalf("qos/retain = %d/%v, want 2/true", got.qos, got.retain)
	}
}

func TestCommandsFIFOPerProducer(t *testing.T) {
	h := newHarness(t, 3, 4)
	stop := h.run()
	defer stop()

	const producers, per = 3, 20
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				h.client.SubmitPublish([]byte(fmt.Sprintf("p%d", p)), []byte(fmt.Sprintf("%d", i)), QoS0, false)
			}
		}(p)
	}
	wg.Wait()
	waitFor(t, "all publishes", func() bool { return len(h.engine.ops("publish")) == producers*per })

	next := map[string]int{}
	for _, c := range h.engine.ops("publish") {
		want := fmt.Sprintf("%d", next[c.topic])
		if c.payload != want {
			t.Fatalf("%s payload = %s, want %s", c.topic, c.payload, want)
		}
		next[c.topic]++
	}
}

func TestConnectTransitionsToConnected(t *testing.T) {
	h := newHarness(t, 4, 4)
	if got := h.client.State(); got != NotConnected {
		t.Fatalf("State() = %s, want %s", got, NotConnected)
	}

	h.client.SubmitConnect([]byte("panel"), []byte("user"), []byte("pw"), &Will{
		Topic:   []byte("panel/available"),
		Payload: []byte("offline"),
		QoS:     QoS2,
		Retain:  true,
	})
	stop := h.run()
	waitFor(t, "connected", func() bool { return h.client.State() == Connected })
	stop()

	calls := h.engine.snapshot()
	if len(calls) < 2 || calls[0].op != "init" || calls[1].op != "connect" {
		t.Fatalf("calls = %+v, want init then connect", calls)
	}
	info := calls[1].info
	if string(info.ClientID) != "panel" || string(info.Username) != "user" || string(info.Password) != "pw" {
		t.Fatalf("connect info = %+v", info)
	}
	if info.KeepAlive != 10*time.Second {
		t.Fatalf("KeepAlive = %s, want 10s", info.KeepAlive)
	}
	if info.Will == nil || string(info.Will.Topic) != "panel/available" || string(info.Will.Payload) != "offline" ||
		info.Will.QoS != QoS2 || !info.Will.Retain {
		t.Fatalf("will = %+v", info.Will)
	}
	if got := h.flash.get(); len(got) != 1 || got[0] != 50 {
		t.Fatalf("flashes = %v, want [50]", got)
	}
}

func TestConnectWhileConnectedFaults(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)
	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)

	stop := h.run()
	defer stop()
	if got := h.faults.Wait(t, 2*time.Second); !strings.Contains(got, "connect while connected") {
		t.Fatalf("fault = %q, want connect while connected", got)
	}
	if n := len(h.engine.ops("connect")); n != 1 {
		t.Fatalf("engine connects = %d, want 1", n)
	}
}

func TestHousekeepingOnlyWhenConnected(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.loop.Step()
	h.loop.Step()
	if h.engine.processed != 0 {
		t.Fatalf("ProcessLoop calls = %d before connect, want 0", h.engine.processed)
	}

	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)
	h.loop.Step()
	h.loop.Step()
	if h.engine.processed != 1 {
		t.Fatalf("ProcessLoop calls = %d, want 1", h.engine.processed)
	}
}

func TestProcessLoopErrorFaults(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)
	h.engine.processErr = errors.New("keepalive timeout")

	stop := h.run()
	defer stop()
	if got := h.faults.Wait(t, 2*time.Second); !strings.Contains(got, "process loop failed") {
		t.Fatalf("fault = %q, want process loop failed", got)
	}
}

func TestPublishBeforeConnectForwardsToEngine(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.engine.publishErr = ErrNotConnected
	h.client.SubmitPublish([]byte("key/state/3"), []byte(`{"state":"ON"}`), QoS0, false)

	stop := h.run()
	defer stop()
	if got := h.faults.Wait(t, 2*time.Second); !strings.Contains(got, "publish failed") {
		t.Fatalf("fault = %q, want publish failed", got)
	}
	pubs := h.engine.ops("publish")
	if len(pubs) != 1 || pubs[0].topic != "key/state/3" {
		t.Fatalf("publishes = %+v, want key/state/3", pubs)
	}
}

func TestSubscribeForwarded(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.client.SubmitSubscribe([]byte("panel/led/cmd/#"), QoS2)
	h.loop.Step()
	subs := h.engine.ops("subscribe")
	if len(subs) != 1 || subs[0].topic != "panel/led/cmd/#" || subs[0].qos != QoS2 {
		t.Fatalf("subscribes = %+v", subs)
	}
}

func TestInboundDelivery(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)
	h.engine.inject("panel/led/cmd/3", `{"state":"ON"}`)
	h.engine.inject("panel/led/cmd/4", `{"state":"OFF"}`)

	stop := h.run()
	defer stop()

	for _, want := range [][2]string{
		{"panel/led/cmd/3", `{"state":"ON"}`},
		{"panel/led/cmd/4", `{"state":"OFF"}`},
	} {
		m, ok := h.client.ReceiveTimeout(2 * time.Second)
		if !ok {
			t.Fatalf("no inbound message for %s", want[0])
		}
		if m.Topic.String() != want[0] || string(m.Payload.Bytes()) != want[1] {
			t.Fatalf("Receive() = %s %s, want %s %s", m.Topic.String(), m.Payload.Bytes(), want[0], want[1])
		}
	}
}

func TestInboundOverCapacityFaults(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.client.SubmitConnect([]byte("panel"), nil, nil, nil)
	h.engine.inject("panel/led/cmd/3", strings.Repeat("x", 201))

	stop := h.run()
	defer stop()
	if got := h.faults.Wait(t, 2*time.Second); !strings.Contains(got, "inbound message exceeds capacity") {
		t.Fatalf("fault = %q, want inbound message exceeds capacity", got)
	}
}
