// Package transport adapts stream connections so that the network loop never
// blocks on them.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"
)

var ErrClosed = errors.New("transport: closed")

// attempt bounds a single Send or Recv on the underlying connection.
const attempt = time.Millisecond

// Adapter wraps a net.Conn. Send and Recv return (0, nil) when no progress is
// possible right now and a non-nil error only on hard failure.
type Adapter struct {
	conn    net.Conn
	log     *slog.Logger
	attempt time.Duration
	closed  atomic.Bool
}

// NewAdapter takes ownership of conn.
func NewAdapter(conn net.Conn, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{conn: conn, log: log, attempt: attempt}
}

// Conn returns the underlying connection.
func (a *Adapter) Conn() net.Conn { return a.conn }

// Send writes as much of b as the connection accepts within one attempt.
func (a *Adapter) Send(b []byte) (int, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if err := a.conn.SetWriteDeadline(time.Now().Add(a.attempt)); err != nil {
		return 0, fmt.Errorf("transport: send: %w", err)
	}
	n, err := a.conn.Write(b)
	if n > 0 && a.log.Enabled(context.Background(), slog.LevelDebug) {
		a.log.Debug("transport send", "n", n, "hex", hex.EncodeToString(b[:n]))
	}
	if err != nil {
		if wouldBlock(err) {
			return n, nil
		}
		return n, fmt.Errorf("transport: send: %w", err)
	}
	return n, nil
}

// Recv reads whatever is available into b within one attempt.
func (a *Adapter) Recv(b []byte) (int, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if err := a.conn.SetReadDeadline(time.Now().Add(a.attempt)); err != nil {
		return 0, fmt.Errorf("transport: recv: %w", err)
	}
	n, err := a.conn.Read(b)
	if err != nil {
		if wouldBlock(err) {
			return n, nil
		}
		return n, fmt.Errorf("transport: recv: %w", err)
	}
	return n, nil
}

// Blocking clears the deadlines so the connection can be handed to a
// library that does its own blocking I/O.
func (a *Adapter) Blocking() error {
	return a.conn.SetDeadline(time.Time{})
}

func (a *Adapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.conn.Close()
}

func wouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errAgain(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
