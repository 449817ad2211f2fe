package mqtt

import "strings"

// Topics builds the device-scoped topic names used by the broker.
//
//	topics := mqtt.Topics{DeviceID: "hp-01"}
//	topics.Events()   // "/devices/hp-01/events"
//	topics.Commands() // "/devices/hp-01/commands/#"
type Topics struct {
	DeviceID string
}

func (t Topics) base() string {
	return "/devices/" + t.DeviceID
}

// Events returns the telemetry topic.
func (t Topics) Events() string {
	return t.base() + "/events"
}

// Commands returns the wildcard subscription for all commands.
func (t Topics) Commands() string {
	return t.base() + "/commands/#"
}

// Config returns the configuration topic.
func (t Topics) Config() string {
	return t.base() + "/config"
}

// IsControl reports whether topic is a command or config topic for this device.
func (t Topics) IsControl(topic string) bool {
	return topic == t.Config() ||
		topic == t.base()+"/commands" ||
		strings.HasPrefix(topic, t.base()+"/commands/")
}
