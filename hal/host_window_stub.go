//go:build !tinygo && !cgo

package hal

import "errors"

// WindowConfig controls the simulator window.
type WindowConfig struct {
	Title    string
	Scale    int
	KeyIndex func(id byte) (int, bool)
	Status   func() string
}

func RunWindow(_ HAL, _ WindowConfig) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
