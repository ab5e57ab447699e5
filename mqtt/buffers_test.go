package mqtt

import (
	"strings"
	"testing"
)

func TestBufferSetRejectsOverCapacity(t *testing.T) {
	var topic Topic
	if !topic.Set([]byte("a/b")) {
		t.Fatal("Topic.Set(a/b) = false, want true")
	}
	if topic.Set(make([]byte, MaxTopic+1)) {
		t.Fatal("Topic.Set(too long) = true, want false")
	}
	if got := topic.String(); got != "a/b" {
		t.Fatalf("Topic after rejected Set = %q, want %q", got, "a/b")
	}

	var p Payload
	if !p.Set(make([]byte, MaxPayload)) || p.Len() != MaxPayload {
		t.Fatalf("Payload.Set(max) len = %d, want %d", p.Len(), MaxPayload)
	}
	var c Credential
	if c.Set([]byte(strings.Repeat("c", MaxCredential+1))) {
		t.Fatal("Credential.Set(too long) = true, want false")
	}
}

func TestCommandCopiesByValue(t *testing.T) {
	var a PublishCommand
	a.Topic.Set([]byte("one"))
	b := a
	b.Topic.Set([]byte("two"))
	if a.Topic.String() != "one" {
		t.Fatalf("original topic = %q after copy was changed, want %q", a.Topic.String(), "one")
	}
}

func TestLimitsValidate(t *testing.T) {
	if err := DefaultLimits().Validate(); err != nil {
		t.Fatalf("DefaultLimits().Validate() = %v", err)
	}
	l := DefaultLimits()
	l.Payload = MaxPayload + 1
	if err := l.Validate(); err == nil {
		t.Fatal("Validate() with oversize payload = nil, want error")
	}
	l = DefaultLimits()
	l.Topic = 0
	if err := l.Validate(); err == nil {
		t.Fatal("Validate() with zero topic = nil, want error")
	}
}

func TestNewEngine(t *testing.T) {
	for _, name := range Engines() {
		e, err := NewEngine(name, EngineConfig{})
		if err != nil || e == nil {
			t.Fatalf("NewEngine(%q) = %v, %v", name, e, err)
		}
	}
	e, err := NewEngine("", EngineConfig{})
	if err != nil {
		t.Fatalf("NewEngine(default) = %v", err)
	}
	if _, ok := e.(*Natiu); !ok {
		t.Fatalf("NewEngine(default) = %T, want *Natiu", e)
	}
	if _, err := NewEngine("nope", EngineConfig{}); err == nil {
		t.Fatal("NewEngine(nope) err = nil, want error")
	}
}

func TestEnginesRejectUseBeforeConnect(t *testing.T) {
	for _, name := range Engines() {
		e, _ := NewEngine(name, EngineConfig{})
		if err := e.Publish([]byte("t"), []byte("p"), QoS0, false); err != ErrNotConnected {
			t.Fatalf("%s Publish() before connect = %v, want ErrNotConnected", name, err)
		}
		if err := e.Subscribe([]byte("t"), QoS0); err != ErrNotConnected {
			t.Fatalf("%s Subscribe() before connect = %v, want ErrNotConnected", name, err)
		}
	}
}
