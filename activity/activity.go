// Package activity drives the status LED: solid on, solid off, or flashing
// at a requested interval.
package activity

import (
	"log/slog"
	"time"

	"keypanel/hal"
	"keypanel/kernel"
)

const (
	modeOn  = 0xFFFFFFFF
	modeOff = 0

	// DefaultIdle is how often a solid LED is refreshed.
	DefaultIdle = 10 * time.Second
)

// LED is the activity LED task. Requests overwrite each other; the task
// only sees the latest.
type LED struct {
	pin  hal.LED
	note *kernel.Notification
	log  *slog.Logger
	idle time.Duration

	interval uint32
	phase    bool
}

func New(pin hal.LED, log *slog.Logger, idle time.Duration) *LED {
	if log == nil {
		log = slog.Default()
	}
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &LED{pin: pin, note: kernel.NewNotification(), log: log, idle: idle, interval: modeOff}
}

// Flash starts flashing with intervalMs on and intervalMs off.
func (a *LED) Flash(intervalMs uint32) {
	// 0 and all-ones are reserved for solid off and on.
	switch intervalMs {
	case modeOff:
		intervalMs = 1
	case modeOn:
		intervalMs = modeOn - 1
	}
	a.note.Notify(intervalMs)
}

func (a *LED) SetOn()  { a.note.Notify(modeOn) }
func (a *LED) SetOff() { a.note.Notify(modeOff) }

// Run is the task body. It never returns.
func (a *LED) Run(t *kernel.Task) {
	a.log.Info("activity led running")
	for {
		a.Step()
		t.Checkpoint()
	}
}

// Step waits for a request or the current interval, then updates the pin.
// A new request restarts flashing with the LED lit.
func (a *LED) Step() {
	wait := a.idle
	if a.flashing() {
		wait = time.Duration(a.interval) * time.Millisecond
	}
	if v, ok := a.note.Wait(wait); ok {
		a.interval = v
		a.phase = true
	}

	switch {
	case a.interval == modeOn:
		a.pin.High()
	case a.interval == modeOff:
		a.pin.Low()
	default:
		if a.phase {
			a.pin.High()
		} else {
			a.pin.Low()
		}
		a.phase = !a.phase
	}
}

func (a *LED) flashing() bool {
	return a.interval != modeOn && a.interval != modeOff
}
