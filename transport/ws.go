//go:build !tinygo

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"keypanel/hal"
)

func init() {
	register("ws", func(hal.Network) Dialer { return WSDialer{} })
}

// minWriteWindow is the least time a frame gets before its write is abandoned.
// A timed-out frame cannot be resumed, so the socket is dead after one.
const minWriteWindow = 20 * time.Millisecond

var errWSBroken = errors.New("transport: websocket write failed")

// WSDialer carries MQTT over a WebSocket (subprotocol "mqtt").
type WSDialer struct {
	// Path defaults to "/mqtt".
	Path string
}

func (d WSDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	path := d.Path
	if path == "" {
		path = "/mqtt"
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: path}

	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{"mqtt"}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", u.String(), err)
	}
	return newWSConn(ws), nil
}

// wsConn presents a WebSocket as a byte stream. A reader goroutine pulls
// binary frames so that read deadlines never poison the socket.
type wsConn struct {
	ws *websocket.Conn

	frames  chan []byte
	done    chan struct{}
	closing chan struct{}
	readErr error

	mu        sync.Mutex
	buf       []byte
	rdeadline time.Time

	wmu       sync.Mutex
	wdeadline time.Time
	werr      error
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:      ws,
		frames:  make(chan []byte),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *wsConn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				err = io.EOF
			}
			c.readErr = err
			return
		}
		select {
		case c.frames <- data:
		case <-c.closing:
			c.readErr = net.ErrClosed
			return
		}
	}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buf) == 0 {
		var timeout <-chan time.Time
		if !c.rdeadline.IsZero() {
			d := time.Until(c.rdeadline)
			if d <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case data := <-c.frames:
			c.buf = data
		case <-c.done:
			return 0, c.readErr
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		}
	}

	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Write sends p as one binary frame within the write deadline. Any failure,
// a timeout included, leaves the socket unusable and every later Write
// returns the same error.
func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.werr != nil {
		return 0, c.werr
	}
	deadline := c.wdeadline
	if !deadline.IsZero() {
		if floor := time.Now().Add(minWriteWindow); deadline.Before(floor) {
			deadline = floor
		}
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		c.werr = fmt.Errorf("%w: %v", errWSBroken, err)
		return 0, c.werr
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		c.werr = fmt.Errorf("%w: %v", errWSBroken, err)
		return 0, c.werr
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	err := net.ErrClosed
	c.closeOnce.Do(func() {
		close(c.closing)
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	_ = c.SetWriteDeadline(t)
	return c.SetReadDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.rdeadline = t
	c.mu.Unlock()
	return nil
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	c.wmu.Lock()
	c.wdeadline = t
	c.wmu.Unlock()
	return nil
}
