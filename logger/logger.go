// Package logger queues formatted log lines for a dedicated log task, so
// tasks never write to the console themselves.
package logger

import (
	"bytes"
	"log/slog"
	"strings"

	"keypanel/hal"
	"keypanel/kernel"
)

// MaxLine is the longest line kept. Longer records are truncated.
const MaxLine = 256

type line struct {
	b [MaxLine]byte
	n uint16
}

// Sink is an io.Writer that turns each write into one queued line.
type Sink struct {
	q *kernel.Queue[line]
}

func NewSink(depth int) (*Sink, error) {
	q, err := kernel.NewQueue[line]("log", depth)
	if err != nil {
		return nil, err
	}
	return &Sink{q: q}, nil
}

// Write queues p as a line, blocking while the queue is full.
func (s *Sink) Write(p []byte) (int, error) {
	var l line
	l.n = uint16(copy(l.b[:], bytes.TrimRight(p, "\r\n")))
	s.q.Send(l)
	return len(p), nil
}

// Handler returns a text handler writing into s.
func (s *Sink) Handler(level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(s, &slog.HandlerOptions{Level: level})
}

// Run is the log task body. It never returns.
func (s *Sink) Run(t *kernel.Task, out hal.Logger) {
	for {
		l := s.q.Recv()
		out.WriteLineBytes(l.b[:l.n])
		t.Checkpoint()
	}
}

// Drain writes every queued line to out and returns how many were written.
func (s *Sink) Drain(out hal.Logger) int {
	n := 0
	for {
		l, ok := s.q.TryRecv()
		if !ok {
			return n
		}
		out.WriteLineBytes(l.b[:l.n])
		n++
	}
}

// ForTask tags log with the task name and the core it runs on.
func ForTask(log *slog.Logger, t *kernel.Task) *slog.Logger {
	return log.With("task", t.Name(), "core", t.Core().String())
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s)))
	return l, err
}
