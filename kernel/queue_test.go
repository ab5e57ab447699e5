package kernel

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

type testMsg struct {
	ID   uint32
	Data [16]byte
	Len  uint8
}

func TestNewQueueRejectsZeroDepth(t *testing.T) {
	if _, err := NewQueue[testMsg]("q", 0); !errors.Is(err, ErrBadDepth) {
		t.Fatalf("NewQueue(0) err = %v, want ErrBadDepth", err)
	}
}

func TestQueueTryRecvEmpty(t *testing.T) {
	q, err := NewQueue[testMsg]("q", 4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	if _, ok := q.TryRecv(); ok {
		t.Fatalf("TryRecv() ok = true, want false")
	}
}

func TestQueueTrySendFull(t *testing.T) {
	const depth = 8
	q, err := NewQueue[testMsg]("q", depth)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	var msg testMsg

	for i := 0; i < depth; i++ {
		if ok := q.TrySend(msg); !ok {
			t.Fatalf("TrySend() ok = false at slot %d, want true", i)
		}
	}
	if ok := q.TrySend(msg); ok {
		t.Fatalf("TrySend() ok = true when full, want false")
	}
	if got := q.Len(); got != depth {
		t.Fatalf("Len() = %d, want %d", got, depth)
	}

	for i := 0; i < depth; i++ {
		if _, ok := q.TryRecv(); !ok {
			t.Fatalf("TryRecv() ok = false at slot %d, want true", i)
		}
	}
}

func TestQueueCopiesValues(t *testing.T) {
	q, _ := NewQueue[testMsg]("q", 2)

	var msg testMsg
	copy(msg.Data[:], "hello")
	msg.Len = 5
	q.Send(msg)

	copy(msg.Data[:], "XXXXX")
	got := q.Recv()
	if string(got.Data[:got.Len]) != "hello" {
		t.Fatalf("Recv() data = %q, want %q", got.Data[:got.Len], "hello")
	}
}

func TestQueueRecvTimeout(t *testing.T) {
	q, _ := NewQueue[testMsg]("q", 1)

	start := time.Now()
	if _, ok := q.RecvTimeout(20 * time.Millisecond); ok {
		t.Fatal("RecvTimeout() ok = true on empty queue, want false")
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Fatalf("RecvTimeout() returned after %v, want >= 20ms", waited)
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Send(testMsg{ID: 7})
	}()
	got, ok := q.RecvTimeout(time.Second)
	if !ok || got.ID != 7 {
		t.Fatalf("RecvTimeout() = %+v, %v, want ID 7, true", got, ok)
	}
}

func TestQueueSendBlocksWhenFull(t *testing.T) {
	q, _ := NewQueue[testMsg]("q", 1)
	q.Send(testMsg{ID: 1})

	sent := make(chan struct{})
	go func() {
		q.Send(testMsg{ID: 2})
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("Send() returned while queue full")
	case <-time.After(20 * time.Millisecond):
	}

	if got := q.Recv(); got.ID != 1 {
		t.Fatalf("Recv() ID = %d, want 1", got.ID)
	}
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("Send() still blocked after drain")
	}
	if got := q.Recv(); got.ID != 2 {
		t.Fatalf("Recv() ID = %d, want 2", got.ID)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		producers = 4
		perProd   = 10_000
		total     = producers * perProd
	)

	q, _ := NewQueue[testMsg]("q", 20)

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(producers)
	for producerID := 0; producerID < producers; producerID++ {
		go func(producerID int) {
			defer wg.Done()
			<-start
			for i := 0; i < perProd; i++ {
				q.Send(testMsg{ID: uint32(producerID*perProd + i)})
			}
		}(producerID)
	}
	close(start)

	seen := make([]bool, total)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for i := 0; i < total; i++ {
		msg := q.Recv()
		id := int(msg.ID)
		if id >= total {
			t.Fatalf("Recv() id = %d, want < %d", id, total)
		}
		if seen[id] {
			t.Fatalf("Recv() duplicate id %d", id)
		}
		seen[id] = true

		p, seq := id/perProd, id%perProd
		if seq <= last[p] {
			t.Fatalf("producer %d: got seq %d after %d, want FIFO", p, seq, last[p])
		}
		last[p] = seq
	}

	wg.Wait()
}
