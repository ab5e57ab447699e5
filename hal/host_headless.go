//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz    int
	Ticks uint64
	// Trace logs the pad colours whenever a new frame is latched.
	Trace bool
}

// RunHeadless watches the simulated keypad of h without opening a window.
// It returns when ctx is done or after cfg.Ticks ticks.
func RunHeadless(ctx context.Context, h HAL, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	panel, ok := Panel(h)
	if !ok {
		return ErrNotImplemented
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	seen := panel.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n := panel.Frames(); n != seen {
				seen = n
				if cfg.Trace {
					h.Logger().WriteLineString(FormatPads(panel.Pads()))
				}
			}
			tick++
			if cfg.Ticks > 0 && tick >= cfg.Ticks {
				return nil
			}
		}
	}
}

// FormatPads renders pad colours as "pads: idx=level/rrggbb ..." listing lit pads only.
func FormatPads(pads []PadColor) string {
	var b strings.Builder
	b.WriteString("pads:")
	lit := 0
	for i, p := range pads {
		if p.Level == 0 {
			continue
		}
		lit++
		fmt.Fprintf(&b, " %d=%d/%02x%02x%02x", i, p.Level, p.R, p.G, p.B)
	}
	if lit == 0 {
		b.WriteString(" off")
	}
	return b.String()
}
