//go:build tinygo && baremetal

package hal

import (
	"machine"

	"tinygo.org/x/drivers"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    statusLED
	keypad *pinKeypad
	wd     *rp2Watchdog
	net    *tinyGoNetwork
}

// New returns an RP2040 HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
// Keypad LEDs: SPI0 on GP18 (SCK) / GP19 (SDO), chip select GP17, 4 MHz.
// Keypad buttons: I2C0 on GP4 (SDA) / GP5 (SCL), 400 kHz.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	spi := machine.SPI0
	spi.Configure(machine.SPIConfig{
		Frequency: 4 * machine.MHz,
		SCK:       machine.GP18,
		SDO:       machine.GP19,
		SDI:       machine.GP16,
	})
	cs := machine.GP17
	cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cs.High()

	i2c := machine.I2C0
	i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    statusLED(ledPin),
		keypad: &pinKeypad{spi: spi, i2c: i2c, cs: cs},
		wd:     &rp2Watchdog{},
		net:    &tinyGoNetwork{},
	}
}

func (h *tinyGoHAL) Logger() Logger     { return h.logger }
func (h *tinyGoHAL) LED() LED           { return h.led }
func (h *tinyGoHAL) Keypad() KeypadBus  { return h.keypad }
func (h *tinyGoHAL) Watchdog() Watchdog { return h.wd }
func (h *tinyGoHAL) Network() Network   { return h.net }

type pinKeypad struct {
	spi *machine.SPI
	i2c *machine.I2C
	cs  machine.Pin
}

func (k *pinKeypad) SPI() drivers.SPI { return k.spi }
func (k *pinKeypad) I2C() drivers.I2C { return k.i2c }

func (k *pinKeypad) ChipSelect(active bool) {
	if active {
		k.cs.Low()
	} else {
		k.cs.High()
	}
}

type rp2Watchdog struct{}

func (rp2Watchdog) Reset() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
	}
}
