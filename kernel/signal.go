package kernel

import (
	"sync"
	"time"
)

// Signal is a binary semaphore. Giving an already given signal is a no-op.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Give makes the signal available.
func (s *Signal) Give() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Take blocks until the signal is given and consumes it.
func (s *Signal) Take() {
	<-s.ch
}

// TakeTimeout waits up to d for the signal.
func (s *Signal) TakeTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Rendezvous is a two-phase handshake between a caller and a helper task.
//
// Phase one ("proceed") goes from the caller to the helper. Phase two
// ("complete") goes from the helper back to the caller.
type Rendezvous struct {
	proceed  *Signal
	complete *Signal
}

func NewRendezvous() *Rendezvous {
	return &Rendezvous{proceed: NewSignal(), complete: NewSignal()}
}

// Proceed releases the helper.
func (r *Rendezvous) Proceed() { r.proceed.Give() }

// AwaitProceed blocks the helper until the caller releases it.
func (r *Rendezvous) AwaitProceed() { r.proceed.Take() }

// Complete tells the caller the helper is finished.
func (r *Rendezvous) Complete() { r.complete.Give() }

// AwaitComplete blocks the caller until the helper completes. There is no timeout.
func (r *Rendezvous) AwaitComplete() { r.complete.Take() }

// Notification is a single-value mailbox with overwrite semantics, the
// equivalent of a task notification: the last value written wins.
type Notification struct {
	mu      sync.Mutex
	value   uint32
	pending bool
	wake    chan struct{}
}

func NewNotification() *Notification {
	return &Notification{wake: make(chan struct{}, 1)}
}

// Notify overwrites any pending value.
func (n *Notification) Notify(v uint32) {
	n.mu.Lock()
	n.value = v
	n.pending = true
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notification) take() (uint32, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.pending {
		return 0, false
	}
	n.pending = false
	return n.value, true
}

// Wait returns the pending value, waiting up to d for one to arrive.
func (n *Notification) Wait(d time.Duration) (uint32, bool) {
	if v, ok := n.take(); ok {
		return v, true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-n.wake:
			if v, ok := n.take(); ok {
				return v, true
			}
		case <-timer.C:
			return n.take()
		}
	}
}
