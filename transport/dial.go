package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"

	"keypanel/hal"
)

// Dialer opens a stream connection to a broker address ("host:port").
type Dialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// TCPDialer dials plain TCP through the HAL network.
type TCPDialer struct {
	Net hal.Network
}

func (d TCPDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := d.Net.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", addr, err)
	}
	return conn, nil
}

var (
	kindsMu sync.RWMutex
	kinds   = map[string]func(hal.Network) Dialer{
		"tcp": func(n hal.Network) Dialer { return TCPDialer{Net: n} },
	}
)

func register(kind string, fn func(hal.Network) Dialer) {
	kindsMu.Lock()
	kinds[kind] = fn
	kindsMu.Unlock()
}

// Kinds lists the transport kinds available in this build.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewDialer returns the dialer for kind ("tcp" or "ws").
func NewDialer(kind string, n hal.Network) (Dialer, error) {
	kindsMu.RLock()
	fn, ok := kinds[kind]
	kindsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: unknown kind %q (have %v)", kind, Kinds())
	}
	return fn(n), nil
}

// Open dials addr and wraps the connection in an Adapter.
func Open(ctx context.Context, d Dialer, addr string, log *slog.Logger) (*Adapter, error) {
	conn, err := d.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return NewAdapter(conn, log), nil
}
