package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"keypanel/kernel"
)

var ErrNotConnected = errors.New("mqtt: not connected")

// DefaultEngine is used when no engine is configured.
const DefaultEngine = "natiu"

// Transport is the non-blocking byte stream an engine runs over. Send and
// Recv return (0, nil) when no progress is possible right now.
type Transport interface {
	Send(b []byte) (int, error)
	Recv(b []byte) (int, error)
	Close() error
}

// PublishFunc receives inbound publishes. It runs on the caller of
// ProcessLoop and the slices are only valid during the call.
type PublishFunc func(topic, payload []byte)

// ConnectInfo is the session identity handed to Engine.Connect.
type ConnectInfo struct {
	ClientID  []byte
	Username  []byte
	Password  []byte
	KeepAlive time.Duration
	Will      *Will
}

// Engine is the MQTT protocol implementation. Every method is called from
// the network loop only.
type Engine interface {
	Init(t Transport, clock kernel.Clock, onPublish PublishFunc) error
	Connect(info ConnectInfo, timeout time.Duration) error
	Publish(topic, payload []byte, qos QoS, retain bool) error
	Subscribe(filter []byte, qos QoS) error
	// ProcessLoop does one step of housekeeping: keepalive and at most one
	// inbound packet. It must not block for long.
	ProcessLoop() error
}

// EngineConfig sizes an engine.
type EngineConfig struct {
	// Buffer is the decode buffer size in bytes.
	Buffer int
	// Inbox is how many inbound publishes an engine may hold between loop steps.
	Inbox int
	// IOTimeout bounds a single packet exchange.
	IOTimeout time.Duration
	Log       *slog.Logger
}

var (
	enginesMu sync.RWMutex
	engines   = map[string]func(EngineConfig) Engine{
		"natiu": func(cfg EngineConfig) Engine { return NewNatiu(cfg) },
	}
)

func registerEngine(name string, fn func(EngineConfig) Engine) {
	enginesMu.Lock()
	engines[name] = fn
	enginesMu.Unlock()
}

// Engines lists the engines available in this build.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	out := make([]string, 0, len(engines))
	for k := range engines {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewEngine builds the named engine. An empty name selects DefaultEngine.
func NewEngine(name string, cfg EngineConfig) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	enginesMu.RLock()
	fn, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mqtt: unknown engine %q (have %v)", name, Engines())
	}
	return fn(cfg), nil
}
