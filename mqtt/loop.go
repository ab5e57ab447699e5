package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"keypanel/fault"
	"keypanel/kernel"
	"keypanel/transport"
)

// Indicator shows network activity.
type Indicator interface {
	Flash(intervalMs uint32)
}

// LoopConfig controls the network loop.
type LoopConfig struct {
	// Broker is the "host:port" to dial on connect.
	Broker         string
	Poll           time.Duration
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// Loop is the single consumer of a Client's commands. It owns the transport
// and the engine.
type Loop struct {
	c      *Client
	engine Engine
	dial   transport.Dialer
	clock  kernel.Clock
	fault  fault.Faulter
	ind    Indicator
	log    *slog.Logger
	cfg    LoopConfig

	tr *transport.Adapter
	in Message
}

func NewLoop(c *Client, e Engine, d transport.Dialer, clock kernel.Clock, f fault.Faulter, ind Indicator, log *slog.Logger, cfg LoopConfig) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{c: c, engine: e, dial: d, clock: clock, fault: f, ind: ind, log: log, cfg: cfg}
}

// Run is the network task body. It never returns.
func (l *Loop) Run(t *kernel.Task) {
	for {
		l.Step()
		t.Checkpoint()
	}
}

// Step runs housekeeping once and handles at most one command.
func (l *Loop) Step() {
	if l.c.State() == Connected {
		if err := l.engine.ProcessLoop(); err != nil {
			l.fault.Fault("mqtt: process loop failed", "err", err)
			return
		}
	}

	cmd, ok := l.c.cmds.RecvTimeout(l.cfg.Poll)
	if !ok {
		return
	}

	switch cmd := cmd.(type) {
	case ConnectCommand:
		l.connect(&cmd)
	case PublishCommand:
		if err := l.engine.Publish(cmd.Topic.Bytes(), cmd.Payload.Bytes(), cmd.QoS, cmd.Retain); err != nil {
			l.fault.Fault("mqtt: publish failed", "topic", cmd.Topic.String(), "err", err)
			return
		}
		l.log.Debug("published", "topic", cmd.Topic.String(), "len", cmd.Payload.Len())
	case SubscribeCommand:
		if err := l.engine.Subscribe(cmd.Filter.Bytes(), cmd.QoS); err != nil {
			l.fault.Fault("mqtt: subscribe failed", "filter", cmd.Filter.String(), "err", err)
			return
		}
		l.log.Info("subscribed", "filter", cmd.Filter.String())
	default:
		l.fault.Fault("mqtt: unknown command", "type", fmt.Sprintf("%T", cmd))
	}
}

func (l *Loop) connect(cmd *ConnectCommand) {
	if l.c.State() == Connected {
		l.fault.Fault("mqtt: connect while connected")
		return
	}
	if l.ind != nil {
		l.ind.Flash(50)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ConnectTimeout)
	defer cancel()
	tr, err := transport.Open(ctx, l.dial, l.cfg.Broker, l.log)
	if err != nil {
		l.fault.Fault("mqtt: open transport failed", "broker", l.cfg.Broker, "err", err)
		return
	}
	l.tr = tr

	if err := l.engine.Init(tr, l.clock, l.deliver); err != nil {
		l.fault.Fault("mqtt: engine init failed", "err", err)
		return
	}

	info := ConnectInfo{
		ClientID:  cmd.ClientID.Bytes(),
		Username:  cmd.Username.Bytes(),
		Password:  cmd.Password.Bytes(),
		KeepAlive: l.cfg.KeepAlive,
	}
	if cmd.HasWill {
		info.Will = &Will{
			Topic:   cmd.WillTopic.Bytes(),
			Payload: cmd.WillPayload.Bytes(),
			QoS:     cmd.WillQoS,
			Retain:  cmd.WillRetain,
		}
	}
	if err := l.engine.Connect(info, l.cfg.ConnectTimeout); err != nil {
		l.fault.Fault("mqtt: connect failed", "broker", l.cfg.Broker, "err", err)
		return
	}
	l.c.setState(Connected)
	l.log.Info("connected", "broker", l.cfg.Broker, "client_id", string(info.ClientID))
}

// deliver copies one inbound publish into the inbound queue. It blocks while
// the queue is full.
func (l *Loop) deliver(topic, payload []byte) {
	lim := l.c.limits
	if len(topic) > lim.Topic || len(payload) > lim.Payload {
		l.fault.Fault("mqtt: inbound message exceeds capacity", "topic_len", len(topic), "payload_len", len(payload))
		return
	}
	l.in.Topic.Set(topic)
	l.in.Payload.Set(payload)
	l.c.inbound.Send(l.in)
}
