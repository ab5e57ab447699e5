package mqtt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	natiu "github.com/soypat/natiu-mqtt"

	"keypanel/kernel"
)

var errInboundTooLarge = errors.New("mqtt: inbound payload exceeds decode buffer")

// Natiu runs the allocation-free natiu-mqtt client over the non-blocking
// transport. Publishes and subscriptions are sent at QoS 0; natiu does not
// track acknowledgements for higher levels.
type Natiu struct {
	cfg     EngineConfig
	decode  []byte
	scratch []byte

	client    *natiu.Client
	rw        *stream
	clock     kernel.Clock
	onPublish PublishFunc

	keepAlive time.Duration
	lastTx    uint32
	packetID  uint16
}

func NewNatiu(cfg EngineConfig) *Natiu {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 512
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	return &Natiu{
		cfg:     cfg,
		decode:  make([]byte, cfg.Buffer),
		scratch: make([]byte, cfg.Buffer),
	}
}

func (n *Natiu) Init(t Transport, clock kernel.Clock, onPublish PublishFunc) error {
	if t == nil || clock == nil || onPublish == nil {
		return errors.New("mqtt: natiu init: missing transport, clock or callback")
	}
	n.rw = newStream(t, clock)
	n.clock = clock
	n.onPublish = onPublish
	n.client = natiu.NewClient(natiu.ClientConfig{
		Decoder: natiu.DecoderNoAlloc{UserBuffer: n.decode},
		OnPub:   n.handlePublish,
	})
	return nil
}

func (n *Natiu) handlePublish(_ natiu.Header, vp natiu.VariablesPublish, r io.Reader) error {
	total := 0
	for {
		if total == len(n.scratch) {
			var extra [1]byte
			if k, _ := r.Read(extra[:]); k > 0 {
				return errInboundTooLarge
			}
			break
		}
		k, err := r.Read(n.scratch[total:])
		total += k
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	n.onPublish(vp.TopicName, n.scratch[:total])
	return nil
}

func (n *Natiu) Connect(info ConnectInfo, timeout time.Duration) error {
	if n.client == nil {
		return errors.New("mqtt: natiu connect before init")
	}
	var vc natiu.VariablesConnect
	vc.SetDefaultMQTT(info.ClientID)
	vc.Username = info.Username
	vc.Password = info.Password
	vc.KeepAlive = uint16(info.KeepAlive / time.Second)
	if w := info.Will; w != nil {
		vc.WillTopic = w.Topic
		vc.WillMessage = w.Payload
		vc.WillQoS = natiu.QoSLevel(w.QoS)
		vc.WillRetain = w.Retain
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n.rw.arm(timeout)
	if err := n.client.Connect(ctx, n.rw, &vc); err != nil {
		return fmt.Errorf("mqtt: natiu connect: %w", err)
	}
	n.keepAlive = info.KeepAlive
	n.lastTx = n.clock.NowMs()
	return nil
}

func (n *Natiu) nextID() uint16 {
	n.packetID++
	if n.packetID == 0 {
		n.packetID = 1
	}
	return n.packetID
}

func (n *Natiu) Publish(topic, payload []byte, _ QoS, retain bool) error {
	if n.client == nil || !n.client.IsConnected() {
		return ErrNotConnected
	}
	flags, err := natiu.NewPublishFlags(natiu.QoS0, false, retain)
	if err != nil {
		return fmt.Errorf("mqtt: natiu publish flags: %w", err)
	}
	n.rw.arm(n.cfg.IOTimeout)
	vp := natiu.VariablesPublish{TopicName: topic, PacketIdentifier: n.nextID()}
	if err := n.client.PublishPayload(flags, vp, payload); err != nil {
		return fmt.Errorf("mqtt: natiu publish %s: %w", topic, err)
	}
	n.lastTx = n.clock.NowMs()
	return nil
}

func (n *Natiu) Subscribe(filter []byte, _ QoS) error {
	if n.client == nil || !n.client.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.IOTimeout)
	defer cancel()
	n.rw.arm(n.cfg.IOTimeout)
	err := n.client.Subscribe(ctx, natiu.VariablesSubscribe{
		TopicFilters:     []natiu.SubscribeRequest{{TopicFilter: filter, QoS: natiu.QoS0}},
		PacketIdentifier: n.nextID(),
	})
	if err != nil {
		return fmt.Errorf("mqtt: natiu subscribe %s: %w", filter, err)
	}
	n.lastTx = n.clock.NowMs()
	return nil
}

func (n *Natiu) ProcessLoop() error {
	if n.client == nil || !n.client.IsConnected() {
		return ErrNotConnected
	}
	now := n.clock.NowMs()
	if n.keepAlive > 0 && time.Duration(kernel.ElapsedMs(n.lastTx, now))*time.Millisecond >= n.keepAlive/2 {
		n.rw.arm(n.cfg.IOTimeout)
		if err := n.client.StartPing(); err != nil {
			return fmt.Errorf("mqtt: natiu ping: %w", err)
		}
		n.lastTx = now
	}

	ready, err := n.rw.poll()
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}
	n.rw.arm(n.cfg.IOTimeout)
	if err := n.client.HandleNext(); err != nil {
		return fmt.Errorf("mqtt: natiu handle: %w", err)
	}
	return nil
}
