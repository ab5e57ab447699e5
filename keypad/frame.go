package keypad

const (
	// NumPads is the length of the LED chain.
	NumPads = 20

	padHeader  = 0b11100000
	frameStart = 4
	frameLen   = frameStart + NumPads*4 + 4
)

// Frame is the LED chain buffer plus the brightness each pad returns to
// when switched back on. Out of range indexes and brightness values are
// ignored.
type Frame struct {
	buf   [frameLen]byte
	level [NumPads]float32
}

// NewFrame returns a frame with every pad off and a restore brightness of 1.
func NewFrame() *Frame {
	f := &Frame{}
	f.Reset()
	return f
}

// Reset turns every pad off and clears its colour.
func (f *Frame) Reset() {
	f.buf = [frameLen]byte{}
	for i := range f.level {
		f.level[i] = 1
		f.buf[frameStart+i*4] = padHeader
	}
}

func (f *Frame) header(i int, b float32) {
	f.buf[frameStart+i*4] = padHeader | uint8(b*0b11111)
}

// SetBrightness writes b to pad i and remembers it for SetOn.
func (f *Frame) SetBrightness(i int, b float32) {
	if i < 0 || i >= NumPads || b < 0 || b > 1 {
		return
	}
	f.level[i] = b
	f.header(i, b)
}

func (f *Frame) SetColor(i int, r, g, b uint8) {
	if i < 0 || i >= NumPads {
		return
	}
	o := frameStart + i*4
	f.buf[o+1] = b
	f.buf[o+2] = g
	f.buf[o+3] = r
}

// SetOn restores the last brightness set on pad i.
func (f *Frame) SetOn(i int) {
	if i < 0 || i >= NumPads {
		return
	}
	f.header(i, f.level[i])
}

// SetOff blanks pad i without forgetting its brightness.
func (f *Frame) SetOff(i int) {
	if i < 0 || i >= NumPads {
		return
	}
	f.header(i, 0)
}

// Level returns the restore brightness of pad i.
func (f *Frame) Level(i int) float32 {
	if i < 0 || i >= NumPads {
		return 0
	}
	return f.level[i]
}

// Bytes returns the wire frame. It aliases the frame's buffer.
func (f *Frame) Bytes() []byte { return f.buf[:] }
