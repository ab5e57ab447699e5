package keypad

import (
	"log/slog"
	"time"

	"keypanel/fault"
	"keypanel/hal"
	"keypanel/kernel"
)

type keyState uint8

const (
	released keyState = iota
	pressed
	held
)

type keyPoll struct {
	state keyState
	since uint32
}

// Config controls the keypad task.
type Config struct {
	Poll        time.Duration
	Hold        time.Duration
	LEDDepth    int
	ButtonDepth int
}

// Keypad is the keypad task. It owns the driver, the restore state and the
// per-key debounce state.
type Keypad struct {
	drv     *Driver
	leds    *kernel.Queue[LEDParams]
	buttons *kernel.Queue[ButtonEvent]
	clock   kernel.Clock
	fault   fault.Faulter
	log     *slog.Logger
	cfg     Config

	keys    [NumKeys]keyPoll
	effects [NumKeys]Effect
}

func New(bus hal.KeypadBus, clock kernel.Clock, f fault.Faulter, log *slog.Logger, cfg Config) (*Keypad, error) {
	if log == nil {
		log = slog.Default()
	}
	leds, err := kernel.NewQueue[LEDParams]("led params", cfg.LEDDepth)
	if err != nil {
		return nil, err
	}
	buttons, err := kernel.NewQueue[ButtonEvent]("button events", cfg.ButtonDepth)
	if err != nil {
		return nil, err
	}
	return &Keypad{
		drv:     NewDriver(bus),
		leds:    leds,
		buttons: buttons,
		clock:   clock,
		fault:   f,
		log:     log,
		cfg:     cfg,
	}, nil
}

// SendLED queues a parameter set. It blocks while the queue is full.
func (k *Keypad) SendLED(p LEDParams) {
	k.leds.Send(p)
}

// ReceiveButton blocks until a button event is available.
func (k *Keypad) ReceiveButton() ButtonEvent {
	return k.buttons.Recv()
}

// ReceiveButtonTimeout waits up to d for a button event.
func (k *Keypad) ReceiveButtonTimeout(d time.Duration) (ButtonEvent, bool) {
	return k.buttons.RecvTimeout(d)
}

// Effect returns the last effect set on a key, or 0.
func (k *Keypad) Effect(id byte) Effect {
	s, ok := slot(id)
	if !ok {
		return 0
	}
	return k.effects[s]
}

// Driver exposes the bus driver.
func (k *Keypad) Driver() *Driver { return k.drv }

// Run is the keypad task body. It never returns.
func (k *Keypad) Run(t *kernel.Task) {
	if err := k.drv.Init(); err != nil {
		k.fault.Fault("keypad: init failed", "err", err)
		return
	}
	k.log.Info("keypad running")
	for {
		k.Step()
		t.Checkpoint()
	}
}

// Step applies queued LED updates and runs one debounce pass.
func (k *Keypad) Step() {
	k.drainLEDs()
	k.scan()
}

func (k *Keypad) drainLEDs() {
	wait := k.cfg.Poll
	applied := false
	for {
		p, ok := k.leds.RecvTimeout(wait)
		if !ok {
			break
		}
		k.apply(&p)
		applied = true
		wait = 0
	}
	if !applied {
		return
	}
	if err := k.drv.Flush(); err != nil {
		k.fault.Fault("keypad: flush failed", "err", err)
	}
}

func (k *Keypad) apply(p *LEDParams) {
	idx, ok := Index(p.KeyID)
	if !ok {
		k.fault.Fault("keypad: invalid key id", "key", string(p.KeyID))
		return
	}
	k.log.Debug("led params", "key", string(p.KeyID), "index", idx,
		"state", p.HasState, "brightness", p.HasBrightness, "color", p.HasColor, "effect", p.HasEffect)

	if p.HasState {
		if p.On {
			k.drv.SetOn(idx)
		} else {
			k.drv.SetOff(idx)
		}
	}
	if p.HasColor {
		k.drv.SetColor(idx, p.R, p.G, p.B)
	}
	if p.HasBrightness {
		k.drv.SetBrightness(idx, Brightness(p.Brightness))
	}
	if p.HasEffect {
		s, _ := slot(p.KeyID)
		k.effects[s] = p.Effect
	}
}

func (k *Keypad) scan() {
	mask, err := k.drv.Buttons()
	if err != nil {
		k.fault.Fault("keypad: button read failed", "err", err)
		return
	}
	now := k.clock.NowMs()
	hold := uint32(k.cfg.Hold / time.Millisecond)

	for s := 0; s < NumKeys; s++ {
		down := mask&(1<<keyIndex[s]) != 0
		key := &k.keys[s]
		switch key.state {
		case released:
			if down {
				key.state, key.since = pressed, now
			}
		case pressed:
			if !down {
				key.state, key.since = released, now
				k.emit(s, Press)
			} else if kernel.ElapsedMs(key.since, now) >= hold {
				key.state, key.since = held, now
				k.emit(s, Hold)
			}
		case held:
			if !down {
				key.state, key.since = released, now
			}
		}
	}
}

// emit blocks while the button queue is full.
func (k *Keypad) emit(s int, kind EventKind) {
	ev := ButtonEvent{KeyID: KeyIDs[s], Kind: kind}
	k.log.Debug("button event", "key", string(ev.KeyID), "event", kind.String())
	k.buttons.Send(ev)
}
