package kernel

import "time"

// Clock is a monotonic millisecond time source.
type Clock interface {
	NowMs() uint32
}

// ElapsedMs returns the milliseconds from a to b, tolerating one wrap.
func ElapsedMs(a, b uint32) uint32 {
	return b - a
}

// MonotonicClock counts milliseconds from its creation.
type MonotonicClock struct {
	boot time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{boot: time.Now()}
}

func (c *MonotonicClock) NowMs() uint32 {
	return uint32(time.Since(c.boot).Milliseconds())
}
