package kernel

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadDepth is returned when a queue or task is created with an unusable size.
var ErrBadDepth = errors.New("bad depth")

// Queue is a fixed-capacity FIFO of values.
//
// Values are copied in and out; a sender may reuse its value as soon as Send
// returns. Any number of tasks may send. Exactly one task should receive.
type Queue[T any] struct {
	name string
	ch   chan T
}

// NewQueue allocates a queue with room for depth values.
func NewQueue[T any](name string, depth int) (*Queue[T], error) {
	if depth <= 0 {
		return nil, fmt.Errorf("kernel: queue %s: depth %d: %w", name, depth, ErrBadDepth)
	}
	return &Queue[T]{name: name, ch: make(chan T, depth)}, nil
}

func (q *Queue[T]) Name() string { return q.name }

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue depth.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// TrySend attempts to enqueue v, returning false if the queue is full.
func (q *Queue[T]) TrySend(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Send enqueues v, blocking until there is room.
func (q *Queue[T]) Send(v T) {
	q.ch <- v
}

// TryRecv attempts to dequeue one value, returning false if empty.
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Recv blocks until one value is available.
func (q *Queue[T]) Recv() T {
	return <-q.ch
}

// RecvTimeout waits up to d for one value. A zero d does not wait.
func (q *Queue[T]) RecvTimeout(d time.Duration) (T, bool) {
	if d <= 0 {
		return q.TryRecv()
	}
	select {
	case v := <-q.ch:
		return v, true
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case v := <-q.ch:
		return v, true
	case <-timer.C:
		var zero T
		return zero, false
	}
}
