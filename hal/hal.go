package hal

import (
	"context"
	"errors"
	"net"

	"tinygo.org/x/drivers"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

// KeypadBus is the keypad wiring: an SPI bus driving the LED chain behind a
// chip select, and an I2C bus to the button expander.
type KeypadBus interface {
	SPI() drivers.SPI
	I2C() drivers.I2C
	// ChipSelect drives the LED chain select line. Active is low on the wire.
	ChipSelect(active bool)
}

// Watchdog arms a hardware reset.
type Watchdog interface {
	// Reset arms the watchdog with the shortest timeout and stops feeding it.
	Reset()
}

// Network brings the link up and opens stream connections.
type Network interface {
	Up(ctx context.Context) error
	Dial(ctx context.Context, network, addr string) (net.Conn, error)
}

// HAL provides the only contact point between the firmware and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	Keypad() KeypadBus
	Watchdog() Watchdog
	Network() Network
}
