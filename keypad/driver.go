package keypad

import (
	"fmt"

	"keypanel/hal"
)

// ButtonAddr is the I2C address of the button expander.
const ButtonAddr = 0x20

// Driver owns the keypad bus and its frame buffer.
type Driver struct {
	bus   hal.KeypadBus
	frame *Frame
	reg   [1]byte
	rx    [2]byte
}

func NewDriver(bus hal.KeypadBus) *Driver {
	return &Driver{bus: bus, frame: NewFrame()}
}

// Init blanks every pad and flushes.
func (d *Driver) Init() error {
	d.frame.Reset()
	return d.Flush()
}

func (d *Driver) SetBrightness(i int, b float32) { d.frame.SetBrightness(i, b) }
func (d *Driver) SetColor(i int, r, g, b uint8)  { d.frame.SetColor(i, r, g, b) }
func (d *Driver) SetOn(i int)                    { d.frame.SetOn(i) }
func (d *Driver) SetOff(i int)                   { d.frame.SetOff(i) }
func (d *Driver) Frame() *Frame                  { return d.frame }

// Buttons returns the pressed mask, bit i set while pad i is held down.
func (d *Driver) Buttons() (uint16, error) {
	d.reg[0] = 0
	if err := d.bus.I2C().Tx(ButtonAddr, d.reg[:], d.rx[:]); err != nil {
		return 0, fmt.Errorf("keypad: read buttons: %w", err)
	}
	return ^(uint16(d.rx[0]) | uint16(d.rx[1])<<8), nil
}

// Flush writes the frame to the LED chain.
func (d *Driver) Flush() error {
	d.bus.ChipSelect(true)
	err := d.bus.SPI().Tx(d.frame.Bytes(), nil)
	d.bus.ChipSelect(false)
	if err != nil {
		return fmt.Errorf("keypad: flush: %w", err)
	}
	return nil
}
