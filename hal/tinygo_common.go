//go:build tinygo && baremetal

package hal

import (
	"context"
	"machine"
	"net"
)

var crlf = []byte{'\r', '\n'}

// uartLogger writes lines to the debug UART. Only the log task writes, so
// lines never interleave.
type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	_, _ = l.uart.Write(b)
	_, _ = l.uart.Write(crlf)
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		_ = l.uart.WriteByte(s[i])
	}
	_, _ = l.uart.Write(crlf)
}

// statusLED is the board's activity LED, driven active high.
type statusLED machine.Pin

func (l statusLED) High() { machine.Pin(l).High() }
func (l statusLED) Low()  { machine.Pin(l).Low() }

// tinyGoNetwork dials through TinyGo's net package. The board build registers
// the wifi netdev and associates before Up is called.
type tinyGoNetwork struct{}

func (tinyGoNetwork) Up(ctx context.Context) error {
	return ctx.Err()
}

// Dial honours ctx before and after the netdev connect; the connect itself
// runs to completion.
func (tinyGoNetwork) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return dialWithin(ctx, addr, func() (net.Conn, error) { return net.Dial(network, addr) })
}
