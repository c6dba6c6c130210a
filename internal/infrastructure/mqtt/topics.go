package mqtt

import (
	"strings"

	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "mussel"

// Topics names the channels shared with the device.
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	topics.DeviceStatus()  // "mussel/data"
//	topics.DeviceCommand() // "mussel/command"
//	topics.CoreStatus()    // "mussel/core/status"
type Topics struct {
	prefix  string
	status  string
	command string
}

// NewTopics resolves explicit topic overrides against the prefix.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	t := Topics{prefix: prefix, status: cfg.Status, command: cfg.Command}
	if t.status == "" {
		t.status = prefix + "/data"
	}
	if t.command == "" {
		t.command = prefix + "/command"
	}
	return t
}

// DeviceStatus is where the device publishes telemetry.
func (t Topics) DeviceStatus() string { return t.status }

// DeviceCommand is where setting changes are sent to the device.
func (t Topics) DeviceCommand() string { return t.command }

// CoreStatus carries this service's retained online/offline presence.
func (t Topics) CoreStatus() string {
	p := t.prefix
	if p == "" {
		p = DefaultPrefix
	}
	return p + "/core/status"
}
