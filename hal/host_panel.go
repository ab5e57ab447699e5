//go:build !tinygo

package hal

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// ButtonExpanderAddr is the I2C address of the keypad button expander.
const ButtonExpanderAddr = 0x20

// PadColor is one decoded LED from the chain.
type PadColor struct {
	Level   uint8 // 0..31
	R, G, B uint8
}

// SimPanel simulates the keypad hardware: it captures SPI frames written
// while the chip select is active and answers button reads over I2C.
type SimPanel struct {
	mu      sync.Mutex
	active  bool
	pending []byte
	frame   []byte
	frames  int
	pressed uint16
}

func NewSimPanel() *SimPanel {
	return &SimPanel{}
}

func (p *SimPanel) SPI() drivers.SPI { return simSPI{p} }
func (p *SimPanel) I2C() drivers.I2C { return simI2C{p} }

func (p *SimPanel) ChipSelect(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if active {
		p.active = true
		p.pending = p.pending[:0]
		return
	}
	if p.active && len(p.pending) > 0 {
		p.frame = append(p.frame[:0], p.pending...)
		p.frames++
	}
	p.active = false
}

// Press sets or clears the button bit for a pad index.
func (p *SimPanel) Press(index int, down bool) {
	if index < 0 || index >= 16 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if down {
		p.pressed |= 1 << index
	} else {
		p.pressed &^= 1 << index
	}
}

// SetPressed replaces the whole button mask.
func (p *SimPanel) SetPressed(mask uint16) {
	p.mu.Lock()
	p.pressed = mask
	p.mu.Unlock()
}

// Frames returns how many complete frames have been latched.
func (p *SimPanel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Frame returns a copy of the last latched frame.
func (p *SimPanel) Frame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.frame...)
}

// Pads decodes the last latched frame. The chain starts after four zero
// bytes and each pad is a header byte followed by blue, green and red.
func (p *SimPanel) Pads() []PadColor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frame) < 8 {
		return nil
	}
	body := p.frame[4 : len(p.frame)-4]
	pads := make([]PadColor, len(body)/4)
	for i := range pads {
		b := body[i*4:]
		pads[i] = PadColor{Level: b[0] & 0x1F, B: b[1], G: b[2], R: b[3]}
	}
	return pads
}

type simSPI struct{ p *SimPanel }

func (s simSPI) Tx(w, r []byte) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.active {
		s.p.pending = append(s.p.pending, w...)
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

func (s simSPI) Transfer(b byte) (byte, error) {
	return 0, s.Tx([]byte{b}, nil)
}

type simI2C struct{ p *SimPanel }

func (s simI2C) Tx(addr uint16, w, r []byte) error {
	if addr != ButtonExpanderAddr {
		return fmt.Errorf("i2c: no device at %#x", addr)
	}
	if len(w) != 1 || w[0] != 0 {
		return fmt.Errorf("i2c: %#x: unsupported register write %x", addr, w)
	}
	s.p.mu.Lock()
	mask := ^s.p.pressed
	s.p.mu.Unlock()
	if len(r) > 0 {
		r[0] = byte(mask)
	}
	if len(r) > 1 {
		r[1] = byte(mask >> 8)
	}
	return nil
}

func (s simI2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return s.Tx(uint16(addr), []byte{reg}, buf)
}

func (s simI2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return fmt.Errorf("i2c: %#x: write register %d: %w", addr, reg, ErrNotImplemented)
}
