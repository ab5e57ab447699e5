// Package faulttest provides a Faulter for tests.
package faulttest

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// Recorder records the first fault and stops the calling goroutine, so Fault
// never returns. Call it only from goroutines the test does not wait on with
// t.Fatal; test goroutines themselves must not fault.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
	ch   chan string
}

func New() *Recorder {
	return &Recorder{ch: make(chan string, 16)}
}

func (r *Recorder) Fault(msg string, args ...any) {
	line := strings.TrimSuffix(fmt.Sprintln(append([]any{msg}, args...)...), "\n")
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	select {
	case r.ch <- line:
	default:
	}
	runtime.Goexit()
}

// Faults returns the messages recorded so far.
func (r *Recorder) Faults() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

// Wait fails t unless a fault arrives within d.
func (r *Recorder) Wait(t testing.TB, d time.Duration) string {
	t.Helper()
	select {
	case line := <-r.ch:
		return line
	case <-time.After(d):
		t.Fatalf("no fault within %s", d)
		return ""
	}
}

// None fails t if a fault arrives within d.
func (r *Recorder) None(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case line := <-r.ch:
		t.Fatalf("unexpected fault: %s", line)
	case <-time.After(d):
	}
}
