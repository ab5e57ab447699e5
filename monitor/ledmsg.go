package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"keypanel/keypad"
)

var ErrPayloadTooLarge = errors.New("monitor: payload too large")

// ParseCommandPayload decodes a Home Assistant JSON light command into a
// partial parameter set. Fields that are missing, mistyped or out of range
// are left unset.
func ParseCommandPayload(payload []byte, max int) (keypad.LEDParams, error) {
	var p keypad.LEDParams
	if len(payload) > max {
		return p, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), max)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return p, fmt.Errorf("monitor: led command: %w", err)
	}

	if raw, ok := fields["brightness"]; ok {
		if v, ok := level(raw); ok {
			p.HasBrightness, p.Brightness = true, v
		}
	}

	if raw, ok := fields["color"]; ok {
		var rgb map[string]json.RawMessage
		if json.Unmarshal(raw, &rgb) == nil {
			r, rok := level(rgb["r"])
			g, gok := level(rgb["g"])
			b, bok := level(rgb["b"])
			if rok && gok && bok {
				p.HasColor, p.R, p.G, p.B = true, r, g, b
			}
		}
	}

	if s, ok := text(fields["effect"]); ok {
		switch s {
		case "none":
			p.HasEffect, p.Effect = true, keypad.EffectNone
		case "flash":
			p.HasEffect, p.Effect = true, keypad.EffectFlash
		case "pulse":
			p.HasEffect, p.Effect = true, keypad.EffectPulse
		}
	}

	if s, ok := text(fields["state"]); ok {
		switch s {
		case "ON":
			p.HasState, p.On = true, true
		case "OFF":
			p.HasState, p.On = true, false
		}
	}
	return p, nil
}

// level accepts a JSON integer in 0..255.
func level(raw json.RawMessage) (uint8, bool) {
	v, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil || v < 0 || v > 255 {
		return 0, false
	}
	return uint8(v), true
}

func text(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// AppendState appends the Home Assistant state echo for p to dst. Only the
// fields that are set are written.
func AppendState(dst []byte, p *keypad.LEDParams) []byte {
	dst = append(dst, '{')
	sep := false
	comma := func() {
		if sep {
			dst = append(dst, ", "...)
		}
		sep = true
	}
	if p.HasState {
		comma()
		if p.On {
			dst = append(dst, `"state": "ON"`...)
		} else {
			dst = append(dst, `"state": "OFF"`...)
		}
	}
	if p.HasBrightness {
		comma()
		dst = append(dst, `"brightness": `...)
		dst = strconv.AppendUint(dst, uint64(p.Brightness), 10)
	}
	if p.HasColor {
		comma()
		dst = append(dst, `"color": {"r": `...)
		dst = strconv.AppendUint(dst, uint64(p.R), 10)
		dst = append(dst, `, "g": `...)
		dst = strconv.AppendUint(dst, uint64(p.G), 10)
		dst = append(dst, `, "b": `...)
		dst = strconv.AppendUint(dst, uint64(p.B), 10)
		dst = append(dst, `}, "color_mode": "rgb"`...)
	}
	return append(dst, '}')
}

// AppendButton appends the device trigger payload for kind to dst.
func AppendButton(dst []byte, kind keypad.EventKind) []byte {
	dst = append(dst, `{"event_type":"`...)
	dst = append(dst, kind.String()...)
	return append(dst, `"}`...)
}
