// Package config holds the panel settings and their firmware defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"keypanel/monitor"
	"keypanel/mqtt"
)

// Config is the root configuration.
type Config struct {
	Broker Broker    `yaml:"broker"`
	Limits Limits    `yaml:"limits"`
	Queues Queues    `yaml:"queues"`
	Keypad Keypad    `yaml:"keypad"`
	Net    Network   `yaml:"network"`
	Fault  Fault     `yaml:"fault"`
	Log    LogConfig `yaml:"log"`
}

type Broker struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Transport is a dialer kind: "tcp" or "ws".
	Transport string `yaml:"transport"`
	// Engine selects the protocol engine; empty picks the build default.
	Engine    string        `yaml:"engine"`
	ClientID  string        `yaml:"client_id"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	KeepAlive time.Duration `yaml:"keep_alive"`
	// Discover looks the broker up over mDNS when Host is empty.
	Discover bool `yaml:"discover"`
}

// Limits are the buffer capacities, in bytes.
type Limits struct {
	ClientID int `yaml:"client_id"`
	Username int `yaml:"username"`
	Password int `yaml:"password"`
	Topic    int `yaml:"topic"`
	Payload  int `yaml:"payload"`
}

// Queues are the queue depths, in items.
type Queues struct {
	Command int `yaml:"command"`
	Inbound int `yaml:"inbound"`
	LED     int `yaml:"led"`
	Button  int `yaml:"button"`
	Log     int `yaml:"log"`
}

type Keypad struct {
	Poll time.Duration `yaml:"poll"`
	Hold time.Duration `yaml:"hold"`
}

type Network struct {
	Poll           time.Duration `yaml:"poll"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// EngineBuffer is the protocol engine's decode buffer, in bytes.
	EngineBuffer int `yaml:"engine_buffer"`
}

type Fault struct {
	Drain     time.Duration `yaml:"drain"`
	ResetSpin time.Duration `yaml:"reset_spin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the firmware defaults. The broker host is left empty.
func Default() *Config {
	return &Config{
		Broker: Broker{
			Port:      1883,
			Transport: "tcp",
			ClientID:  "alert_panel_1",
			KeepAlive: 10 * time.Second,
		},
		Limits: Limits{ClientID: 30, Username: 30, Password: 30, Topic: 40, Payload: 200},
		Queues: Queues{Command: 20, Inbound: 20, LED: 20, Button: 20, Log: 10},
		Keypad: Keypad{Poll: 10 * time.Millisecond, Hold: 800 * time.Millisecond},
		Net: Network{
			Poll:           100 * time.Millisecond,
			ConnectTimeout: 5 * time.Second,
			EngineBuffer:   2048,
		},
		Fault: Fault{Drain: time.Second, ResetSpin: 10 * time.Second},
		Log:   LogConfig{Level: "info"},
	}
}

// MQTT converts the limits for the mqtt package.
func (l Limits) MQTT() mqtt.Limits {
	return mqtt.Limits{
		ClientID: l.ClientID,
		Username: l.Username,
		Password: l.Password,
		Topic:    l.Topic,
		Payload:  l.Payload,
	}
}

// Addr returns the broker address as host:port.
func (b Broker) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// NewClientID returns a fresh client id of the form keypanel_xxxxxxxx.
func NewClientID() string {
	return "keypanel_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}

	if c.Broker.Host == "" && !c.Broker.Discover {
		add("broker.host is required unless broker.discover is set")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		add("broker.port %d out of range", c.Broker.Port)
	}
	if c.Broker.ClientID == "" {
		add("broker.client_id is required")
	}
	if n := len(c.Broker.ClientID); n > c.Limits.ClientID {
		add("broker.client_id is %d bytes, limit %d", n, c.Limits.ClientID)
	}
	// The button state topic is the longest one rooted at the client id.
	if n := len(monitor.Topics{ID: c.Broker.ClientID}.ButtonState('0')); n > c.Limits.Topic {
		add("broker.client_id %q gives %d-byte topics, limit %d", c.Broker.ClientID, n, c.Limits.Topic)
	}
	if n := len(c.Broker.Username); n > c.Limits.Username {
		add("broker.username is %d bytes, limit %d", n, c.Limits.Username)
	}
	if n := len(c.Broker.Password); n > c.Limits.Password {
		add("broker.password is %d bytes, limit %d", n, c.Limits.Password)
	}
	positive("broker.keep_alive", c.Broker.KeepAlive)
	if err := c.Limits.MQTT().Validate(); err != nil {
		errs = append(errs, err)
	}

	for name, v := range map[string]int{
		"queues.command": c.Queues.Command,
		"queues.inbound": c.Queues.Inbound,
		"queues.led":     c.Queues.LED,
		"queues.button":  c.Queues.Button,
		"queues.log":     c.Queues.Log,
	} {
		if v <= 0 {
			add("%s must be positive, got %d", name, v)
		}
	}

	positive("keypad.poll", c.Keypad.Poll)
	positive("keypad.hold", c.Keypad.Hold)
	positive("network.poll", c.Net.Poll)
	positive("network.connect_timeout", c.Net.ConnectTimeout)
	if c.Net.EngineBuffer < c.Limits.Topic+c.Limits.Payload {
		add("network.engine_buffer %d smaller than topic+payload", c.Net.EngineBuffer)
	}
	positive("fault.drain", c.Fault.Drain)
	if c.Fault.ResetSpin < 0 {
		add("fault.reset_spin must not be negative, got %s", c.Fault.ResetSpin)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	return errors.Join(errs...)
}
