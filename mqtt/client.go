// Package mqtt is the command/event pipeline between application tasks and
// the broker connection.
//
// Tasks submit commands through a Client. A single Loop, running on the
// network core, consumes them, drives the protocol Engine and copies inbound
// publishes back into the Client's inbound queue.
package mqtt

import (
	"sync/atomic"
	"time"

	"keypanel/fault"
	"keypanel/kernel"
)

// Client is the task-facing side of the pipeline. Any number of tasks may
// submit. Exactly one task should receive.
type Client struct {
	limits  Limits
	cmds    *kernel.Queue[Command]
	inbound *kernel.Queue[Message]
	fault   fault.Faulter

	state atomic.Uint32
}

// NewClient allocates the command and inbound queues.
func NewClient(limits Limits, cmdDepth, inboundDepth int, f fault.Faulter) (*Client, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	cmds, err := kernel.NewQueue[Command]("mqtt cmd", cmdDepth)
	if err != nil {
		return nil, err
	}
	inbound, err := kernel.NewQueue[Message]("mqtt inbound", inboundDepth)
	if err != nil {
		return nil, err
	}
	return &Client{limits: limits, cmds: cmds, inbound: inbound, fault: f}, nil
}

func (c *Client) Limits() Limits { return c.limits }

// State returns the connection state as last set by the loop.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(uint32(s)) }

// Pending returns the number of queued commands.
func (c *Client) Pending() int { return c.cmds.Len() }

func (c *Client) check(what string, n, limit int) bool {
	if n > limit {
		c.fault.Fault("mqtt: "+what+" exceeds capacity", "len", n, "cap", limit)
		return false
	}
	return true
}

// SubmitConnect queues a connect. It blocks while the command queue is full.
func (c *Client) SubmitConnect(clientID, username, password []byte, will *Will) {
	if !c.check("client id", len(clientID), c.limits.ClientID) ||
		!c.check("username", len(username), c.limits.Username) ||
		!c.check("password", len(password), c.limits.Password) {
		return
	}
	var cmd ConnectCommand
	cmd.ClientID.Set(clientID)
	cmd.Username.Set(username)
	cmd.Password.Set(password)
	if will != nil {
		if !c.check("will topic", len(will.Topic), c.limits.Topic) ||
			!c.check("will payload", len(will.Payload), c.limits.Payload) {
			return
		}
		cmd.HasWill = true
		cmd.WillTopic.Set(will.Topic)
		cmd.WillPayload.Set(will.Payload)
		cmd.WillQoS = will.QoS
		cmd.WillRetain = will.Retain
	}
	c.cmds.Send(cmd)
}

// SubmitPublish queues a publish. It blocks while the command queue is full.
// topic and payload may be reused as soon as it returns.
func (c *Client) SubmitPublish(topic, payload []byte, qos QoS, retain bool) {
	if !c.check("topic", len(topic), c.limits.Topic) ||
		!c.check("payload", len(payload), c.limits.Payload) {
		return
	}
	var cmd PublishCommand
	cmd.Topic.Set(topic)
	cmd.Payload.Set(payload)
	cmd.QoS = qos
	cmd.Retain = retain
	c.cmds.Send(cmd)
}

// SubmitSubscribe queues a subscribe. It blocks while the command queue is full.
func (c *Client) SubmitSubscribe(filter []byte, qos QoS) {
	if !c.check("filter", len(filter), c.limits.Topic) {
		return
	}
	var cmd SubscribeCommand
	cmd.Filter.Set(filter)
	cmd.QoS = qos
	c.cmds.Send(cmd)
}

// Receive blocks until an inbound message arrives.
func (c *Client) Receive() Message {
	return c.inbound.Recv()
}

// ReceiveTimeout waits up to d for an inbound message.
func (c *Client) ReceiveTimeout(d time.Duration) (Message, bool) {
	return c.inbound.RecvTimeout(d)
}
