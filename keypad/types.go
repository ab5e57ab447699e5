package keypad

// Effect is an LED animation. Effects are recorded per key but not rendered.
type Effect uint8

const (
	EffectNone Effect = iota + 1
	EffectFlash
	EffectPulse
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectFlash:
		return "flash"
	case EffectPulse:
		return "pulse"
	}
	return "unknown"
}

// LEDParams is a partial update for one key. Only fields whose Has flag is
// set are applied.
type LEDParams struct {
	KeyID byte

	HasState bool
	On       bool

	HasBrightness bool
	Brightness    uint8

	HasColor bool
	R, G, B  uint8

	HasEffect bool
	Effect    Effect
}

// EventKind is a discrete button event.
type EventKind uint8

const (
	Press EventKind = iota + 1
	Hold
)

func (k EventKind) String() string {
	switch k {
	case Press:
		return "press"
	case Hold:
		return "hold"
	}
	return "unknown"
}

// ButtonEvent is emitted by the debounce state machine.
type ButtonEvent struct {
	KeyID byte
	Kind  EventKind
}
