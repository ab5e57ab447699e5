//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	panel  *SimPanel
	wd     *hostWatchdog
	net    *hostNetwork
}

// New returns a host HAL implementation backed by a simulated keypad.
func New() HAL {
	return newHost()
}

func newHost() *hostHAL {
	logger := &hostLogger{w: os.Stdout}
	return &hostHAL{
		logger: logger,
		led:    &hostLED{},
		panel:  NewSimPanel(),
		wd:     &hostWatchdog{logger: logger, exit: os.Exit},
		net:    &hostNetwork{},
	}
}

func (h *hostHAL) Logger() Logger     { return h.logger }
func (h *hostHAL) LED() LED           { return h.led }
func (h *hostHAL) Keypad() KeypadBus  { return h.panel }
func (h *hostHAL) Watchdog() Watchdog { return h.wd }
func (h *hostHAL) Network() Network   { return h.net }

// Panel exposes the simulated keypad behind a host HAL.
func Panel(h HAL) (*SimPanel, bool) {
	hh, ok := h.(*hostHAL)
	if !ok {
		return nil, false
	}
	return hh.panel, true
}

// ActivityLED reports the host activity LED level.
func ActivityLED(h HAL) bool {
	hh, ok := h.(*hostHAL)
	if !ok {
		return false
	}
	return hh.led.on.Load()
}

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	on atomic.Bool
}

func (l *hostLED) High() { l.on.Store(true) }
func (l *hostLED) Low()  { l.on.Store(false) }

type hostWatchdog struct {
	logger *hostLogger
	exit   func(int)
}

func (w *hostWatchdog) Reset() {
	w.logger.WriteLineString("watchdog: reset")
	w.exit(3)
}

type hostNetwork struct{}

func (n *hostNetwork) Up(ctx context.Context) error {
	return ctx.Err()
}

func (n *hostNetwork) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}
