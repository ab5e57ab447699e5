package monitor

import (
	"log/slog"

	"keypanel/kernel"
	"keypanel/keypad"
	"keypanel/mqtt"
)

// ButtonMonitor publishes keypad events as device triggers.
type ButtonMonitor struct {
	broker  Broker
	buttons ButtonSource
	log     *slog.Logger
	topics  Topics

	buf [32]byte
}

func NewButtonMonitor(b Broker, buttons ButtonSource, log *slog.Logger, clientID string) *ButtonMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &ButtonMonitor{broker: b, buttons: buttons, log: log, topics: Topics{ID: clientID}}
}

// Run is the button monitor task body. It never returns.
func (m *ButtonMonitor) Run(t *kernel.Task) {
	for {
		m.Publish(m.buttons.ReceiveButton())
		t.Checkpoint()
	}
}

func (m *ButtonMonitor) Publish(ev keypad.ButtonEvent) {
	m.log.Debug("button", "key", string(ev.KeyID), "event", ev.Kind.String())
	payload := AppendButton(m.buf[:0], ev.Kind)
	m.broker.SubmitPublish([]byte(m.topics.ButtonState(ev.KeyID)), payload, mqtt.QoS2, false)
}
