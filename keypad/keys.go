// Package keypad drives the backlit 4x4 keypad: an APA102-style LED chain on
// SPI and a button expander on I2C.
package keypad

// NumKeys is the number of keys with a key id.
const NumKeys = 16

// KeyIDs lists every key id in slot order.
const KeyIDs = "0123456789abcdef"

// keyIndex maps key slots to pad indexes; the panel is not wired in key order.
var keyIndex = [NumKeys]uint8{
	0x3, 0x7, 0xb, 0xf,
	0x2, 0x6, 0xa, 0xe,
	0x1, 0x5, 0x9, 0xd,
	0x0, 0x4, 0x8, 0xc,
}

func slot(id byte) (int, bool) {
	switch {
	case id >= '0' && id <= '9':
		return int(id - '0'), true
	case id >= 'a' && id <= 'f':
		return int(id-'a') + 10, true
	}
	return 0, false
}

// Index returns the pad index for a key id.
func Index(id byte) (int, bool) {
	s, ok := slot(id)
	if !ok {
		return 0, false
	}
	return int(keyIndex[s]), true
}

// ValidKeyID reports whether id names a key.
func ValidKeyID(id byte) bool {
	_, ok := slot(id)
	return ok
}

// Brightness converts a 0-255 level to 0.0-1.0.
func Brightness(v uint8) float32 {
	switch v {
	case 0:
		return 0
	case 255:
		return 1
	}
	return float32(v) / 255
}
