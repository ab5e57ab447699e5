package hal

import (
	"context"
	"fmt"
	"net"
)

// dialWithin runs a dial that cannot be interrupted and holds it to ctx: a
// cancelled ctx skips the dial, and a connection that arrives after ctx ends
// is closed and reported as ctx's error.
func dialWithin(ctx context.Context, addr string, dial func() (net.Conn, error)) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hal: dial %s: %w", addr, err)
	}
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hal: dial %s: %w", addr, err)
	}
	return conn, nil
}
