//go:build !tinygo

package mqtt

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"keypanel/kernel"
)

func init() {
	registerEngine("paho", func(cfg EngineConfig) Engine { return NewPaho(cfg) })
}

// connTransport is implemented by transports that can hand their connection
// to a library doing its own blocking I/O.
type connTransport interface {
	Conn() net.Conn
	Blocking() error
}

type pahoInbound struct {
	topic   string
	payload []byte
}

// Paho runs the Eclipse Paho client over the connection the network loop
// opened. Paho reads on its own goroutines; inbound publishes are parked in
// an inbox and handed to the loop from ProcessLoop.
//
// Handlers never block: paho's reader also carries the acknowledgements the
// loop's own publishes wait for, so the inbox grows past cfg.Inbox instead.
type Paho struct {
	cfg EngineConfig

	conn      net.Conn
	client    paho.Client
	onPublish PublishFunc

	mu    sync.Mutex
	inbox []pahoInbound
	lost  error
}

func NewPaho(cfg EngineConfig) *Paho {
	if cfg.Inbox <= 0 {
		cfg.Inbox = 20
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	return &Paho{cfg: cfg, inbox: make([]pahoInbound, 0, cfg.Inbox)}
}

func (p *Paho) Init(t Transport, _ kernel.Clock, onPublish PublishFunc) error {
	ct, ok := t.(connTransport)
	if !ok {
		return fmt.Errorf("mqtt: paho init: transport %T has no connection", t)
	}
	if onPublish == nil {
		return errors.New("mqtt: paho init: missing callback")
	}
	if err := ct.Blocking(); err != nil {
		return fmt.Errorf("mqtt: paho init: %w", err)
	}
	p.conn = ct.Conn()
	p.onPublish = onPublish
	return nil
}

func (p *Paho) enqueue(_ paho.Client, m paho.Message) {
	p.mu.Lock()
	p.inbox = append(p.inbox, pahoInbound{topic: m.Topic(), payload: m.Payload()})
	p.mu.Unlock()
}

// next pops the oldest parked publish.
func (p *Paho) next() (pahoInbound, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inbox) == 0 {
		return pahoInbound{}, false
	}
	m := p.inbox[0]
	p.inbox[0] = pahoInbound{}
	p.inbox = p.inbox[1:]
	if len(p.inbox) == 0 && cap(p.inbox) > p.cfg.Inbox {
		p.inbox = make([]pahoInbound, 0, p.cfg.Inbox)
	}
	return m, true
}

func (p *Paho) Connect(info ConnectInfo, timeout time.Duration) error {
	if p.conn == nil {
		return errors.New("mqtt: paho connect before init")
	}
	opts := paho.NewClientOptions()
	opts.AddBroker("tcp://" + p.conn.RemoteAddr().String())
	opts.SetClientID(string(info.ClientID))
	opts.SetUsername(string(info.Username))
	opts.SetPassword(string(info.Password))
	opts.SetKeepAlive(info.KeepAlive)
	opts.SetConnectTimeout(timeout)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	if w := info.Will; w != nil {
		opts.SetBinaryWill(string(w.Topic), w.Payload, byte(w.QoS), w.Retain)
	}
	conn := p.conn
	opts.SetCustomOpenConnectionFn(func(*url.URL, paho.ClientOptions) (net.Conn, error) {
		return conn, nil
	})
	opts.SetDefaultPublishHandler(p.enqueue)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.mu.Lock()
		p.lost = err
		p.mu.Unlock()
	})

	p.client = paho.NewClient(opts)
	tok := p.client.Connect()
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: paho connect: timeout after %s", timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: paho connect: %w", err)
	}
	return nil
}

func (p *Paho) wait(tok paho.Token, what string) error {
	if !tok.WaitTimeout(p.cfg.IOTimeout) {
		return fmt.Errorf("mqtt: paho %s: timeout after %s", what, p.cfg.IOTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: paho %s: %w", what, err)
	}
	return nil
}

func (p *Paho) Publish(topic, payload []byte, qos QoS, retain bool) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	body := append([]byte(nil), payload...)
	return p.wait(p.client.Publish(string(topic), byte(qos), retain, body), "publish "+string(topic))
}

func (p *Paho) Subscribe(filter []byte, qos QoS) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return p.wait(p.client.Subscribe(string(filter), byte(qos), p.enqueue), "subscribe "+string(filter))
}

// ProcessLoop delivers at most one parked inbound publish.
func (p *Paho) ProcessLoop() error {
	p.mu.Lock()
	lost := p.lost
	p.mu.Unlock()
	if lost != nil {
		return fmt.Errorf("mqtt: paho connection lost: %w", lost)
	}
	if p.client == nil || !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if m, ok := p.next(); ok {
		p.onPublish([]byte(m.topic), m.payload)
	}
	return nil
}
