package monitor

import (
	"log/slog"
	"time"

	"keypanel/kernel"
	"keypanel/keypad"
	"keypanel/mqtt"
)

// Broker is the part of *mqtt.Client the monitors use.
type Broker interface {
	SubmitConnect(clientID, username, password []byte, will *mqtt.Will)
	SubmitPublish(topic, payload []byte, qos mqtt.QoS, retain bool)
	SubmitSubscribe(filter []byte, qos mqtt.QoS)
	Receive() mqtt.Message
	State() mqtt.State
}

// connectPoll is how often Announce checks for the broker session.
const connectPoll = 10 * time.Millisecond

// LEDSink accepts LED parameter sets. *keypad.Keypad implements it.
type LEDSink interface {
	SendLED(p keypad.LEDParams)
}

// ButtonSource yields button events. *keypad.Keypad implements it.
type ButtonSource interface {
	ReceiveButton() keypad.ButtonEvent
}

// Activity is switched solid on once the panel is online.
type Activity interface {
	SetOn()
}

// Credentials are the connect parameters for the panel.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// LEDMonitor announces the panel, subscribes to LED commands and forwards
// them to the keypad, echoing each one back as the light's state.
type LEDMonitor struct {
	broker   Broker
	leds     LEDSink
	activity Activity
	log      *slog.Logger

	topics     Topics
	creds      Credentials
	maxPayload int

	buf []byte
}

func NewLEDMonitor(b Broker, leds LEDSink, act Activity, log *slog.Logger, creds Credentials, maxPayload int) *LEDMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &LEDMonitor{
		broker:     b,
		leds:       leds,
		activity:   act,
		log:        log,
		topics:     Topics{ID: creds.ClientID},
		creds:      creds,
		maxPayload: maxPayload,
		buf:        make([]byte, 0, maxPayload),
	}
}

// Run is the LED monitor task body. It never returns.
func (m *LEDMonitor) Run(t *kernel.Task) {
	m.Announce()
	for {
		m.Handle(m.broker.Receive())
		t.Checkpoint()
	}
}

// Announce connects with an offline will, subscribes to LED commands,
// marks the panel online and publishes every light as off.
func (m *LEDMonitor) Announce() {
	m.broker.SubmitConnect([]byte(m.creds.ClientID), []byte(m.creds.Username), []byte(m.creds.Password), &mqtt.Will{
		Topic:   []byte(m.topics.Available()),
		Payload: []byte(payloadOffline),
		QoS:     mqtt.QoS2,
		Retain:  true,
	})
	m.broker.SubmitSubscribe([]byte(m.topics.LEDCommands()), mqtt.QoS2)
	m.broker.SubmitPublish([]byte(m.topics.Available()), []byte(payloadOnline), mqtt.QoS2, true)

	for i := 0; i < keypad.NumKeys; i++ {
		p := keypad.LEDParams{
			KeyID:         keypad.KeyIDs[i],
			HasState:      true,
			HasBrightness: true,
			HasColor:      true,
		}
		m.publishState(&p)
	}
	// The loop flashes the LED while connecting; only go solid once it is done.
	for m.broker.State() != mqtt.Connected {
		time.Sleep(connectPoll)
	}
	if m.activity != nil {
		m.activity.SetOn()
	}
	m.log.Info("led monitor online", "client", m.creds.ClientID)
}

// Handle processes one inbound message. Messages that are not LED commands
// for a known key, or whose payload is not JSON, are dropped.
func (m *LEDMonitor) Handle(msg mqtt.Message) {
	key, ok := ParseCommandTopic(msg.Topic.Bytes(), m.topics.LEDCommands())
	if !ok {
		m.log.Warn("unexpected topic", "topic", msg.Topic.String())
		return
	}
	if !keypad.ValidKeyID(key) {
		m.log.Warn("unknown key", "topic", msg.Topic.String())
		return
	}
	p, err := ParseCommandPayload(msg.Payload.Bytes(), m.maxPayload)
	if err != nil {
		m.log.Warn("dropping led command", "topic", msg.Topic.String(), "err", err)
		return
	}
	p.KeyID = key
	m.leds.SendLED(p)
	m.publishState(&p)
}

func (m *LEDMonitor) publishState(p *keypad.LEDParams) {
	m.buf = AppendState(m.buf[:0], p)
	m.broker.SubmitPublish([]byte(m.topics.LEDState(p.KeyID)), m.buf, mqtt.QoS2, true)
}
