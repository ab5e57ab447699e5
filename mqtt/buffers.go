package mqtt

import (
	"errors"
	"fmt"
)

// Buffer capacities. Limits narrows them at run time but never widens them.
const (
	MaxTopic      = 64
	MaxPayload    = 256
	MaxCredential = 64
)

var ErrTooLong = errors.New("exceeds capacity")

// Topic is a topic name or filter held by value.
type Topic struct {
	n uint8
	b [MaxTopic]byte
}

// Payload is a message body held by value.
type Payload struct {
	n uint16
	b [MaxPayload]byte
}

// Credential is a client id, username or password held by value.
type Credential struct {
	n uint8
	b [MaxCredential]byte
}

func (t *Topic) Set(p []byte) bool {
	if len(p) > MaxTopic {
		return false
	}
	t.n = uint8(copy(t.b[:], p))
	return true
}

func (t *Topic) Bytes() []byte   { return t.b[:t.n] }
func (t *Topic) Len() int        { return int(t.n) }
func (t *Topic) String() string  { return string(t.Bytes()) }
func (p *Payload) Bytes() []byte { return p.b[:p.n] }
func (p *Payload) Len() int      { return int(p.n) }

func (p *Payload) Set(b []byte) bool {
	if len(b) > MaxPayload {
		return false
	}
	p.n = uint16(copy(p.b[:], b))
	return true
}

func (c *Credential) Set(p []byte) bool {
	if len(p) > MaxCredential {
		return false
	}
	c.n = uint8(copy(c.b[:], p))
	return true
}

func (c *Credential) Bytes() []byte { return c.b[:c.n] }
func (c *Credential) Len() int      { return int(c.n) }

// Limits are the capacities enforced at submission and on inbound delivery.
type Limits struct {
	ClientID int
	Username int
	Password int
	Topic    int
	Payload  int
}

// DefaultLimits matches the firmware buffer sizes.
func DefaultLimits() Limits {
	return Limits{ClientID: 30, Username: 30, Password: 30, Topic: 40, Payload: 200}
}

// Validate checks that every limit is positive and fits its buffer.
func (l Limits) Validate() error {
	check := func(name string, v, max int) error {
		if v <= 0 || v > max {
			return fmt.Errorf("mqtt: limit %s = %d: must be in 1..%d", name, v, max)
		}
		return nil
	}
	return errors.Join(
		check("client id", l.ClientID, MaxCredential),
		check("username", l.Username, MaxCredential),
		check("password", l.Password, MaxCredential),
		check("topic", l.Topic, MaxTopic),
		check("payload", l.Payload, MaxPayload),
	)
}
