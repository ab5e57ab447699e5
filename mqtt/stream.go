package mqtt

import (
	"os"
	"time"

	"keypanel/kernel"
)

// retry is the pause between attempts that made no progress.
const retry = time.Millisecond

// stream turns a non-blocking Transport back into a blocking
// io.ReadWriteCloser for engines that decode whole packets at a time. Every
// operation is bounded by the deadline set with arm.
type stream struct {
	t     Transport
	clock kernel.Clock

	peeked  bool
	peek    byte
	armed   bool
	expires uint32
}

func newStream(t Transport, clock kernel.Clock) *stream {
	return &stream{t: t, clock: clock}
}

func (s *stream) arm(d time.Duration) {
	s.expires = s.clock.NowMs() + uint32(d/time.Millisecond)
	s.armed = true
}

func (s *stream) expired() bool {
	return s.armed && int32(s.clock.NowMs()-s.expires) >= 0
}

// poll reads a single byte without waiting and keeps it for the next Read.
func (s *stream) poll() (bool, error) {
	if s.peeked {
		return true, nil
	}
	var b [1]byte
	n, err := s.t.Recv(b[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	s.peek, s.peeked = b[0], true
	return true, nil
}

func (s *stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.peeked {
		p[0] = s.peek
		s.peeked = false
		return 1, nil
	}
	for {
		n, err := s.t.Recv(p)
		if err != nil || n > 0 {
			return n, err
		}
		if s.expired() {
			return 0, os.ErrDeadlineExceeded
		}
		time.Sleep(retry)
	}
}

func (s *stream) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.t.Send(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			if s.expired() {
				return total, os.ErrDeadlineExceeded
			}
			time.Sleep(retry)
		}
	}
	return total, nil
}

func (s *stream) Close() error { return s.t.Close() }
