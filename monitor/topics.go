// Package monitor bridges the keypad and the broker using the Home Assistant
// MQTT light and device-trigger conventions.
package monitor

// Topics builds the topics for one panel, all rooted at its client id.
type Topics struct {
	ID string
}

func (t Topics) Available() string   { return t.ID + "/available" }
func (t Topics) LEDCommands() string { return t.ID + "/led/cmd/#" }
func (t Topics) LEDState(key byte) string {
	return t.ID + "/led/state/" + string(key)
}
func (t Topics) ButtonState(key byte) string {
	return t.ID + "/button/state/" + string(key)
}

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// ParseCommandTopic returns the key id of an LED command topic. The topic
// must have the same length as the filter and match it up to the wildcard.
func ParseCommandTopic(topic []byte, filter string) (byte, bool) {
	n := len(filter)
	if n == 0 || len(topic) != n {
		return 0, false
	}
	if string(topic[:n-1]) != filter[:n-1] {
		return 0, false
	}
	return topic[n-1], true
}
