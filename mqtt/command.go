package mqtt

// QoS is an MQTT delivery level.
type QoS uint8

const (
	QoS0 QoS = iota
	QoS1
	QoS2
)

// Will is the message the broker publishes if the client drops.
type Will struct {
	Topic   []byte
	Payload []byte
	QoS     QoS
	Retain  bool
}

// Command is a network operation request. The concrete types are
// ConnectCommand, PublishCommand and SubscribeCommand.
type Command interface {
	command()
}

type ConnectCommand struct {
	ClientID Credential
	Username Credential
	Password Credential

	HasWill     bool
	WillTopic   Topic
	WillPayload Payload
	WillQoS     QoS
	WillRetain  bool
}

type PublishCommand struct {
	Topic   Topic
	Payload Payload
	QoS     QoS
	Retain  bool
}

type SubscribeCommand struct {
	Filter Topic
	QoS    QoS
}

func (ConnectCommand) command()   {}
func (PublishCommand) command()   {}
func (SubscribeCommand) command() {}

// Message is one inbound publish.
type Message struct {
	Topic   Topic
	Payload Payload
}

// State is the connection state owned by the network loop.
type State uint32

const (
	NotConnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "not connected"
}
