// Package broker connects the server to the MQTT broker the devices
// listen on, with an abstraction for testing.
package broker

import "strings"

// MessageHandler receives messages from a subscription.
type MessageHandler func(topic string, payload []byte)

// Publisher publishes traffic commands and receives sensor events.
type Publisher interface {
	// PublishCommand sends the zone string to the command topic.
	PublishCommand(zone string) error

	// Subscribe routes messages matching filter to handler. Subscriptions
	// survive reconnects.
	Subscribe(filter string, handler MessageHandler) error

	// IsConnected reports whether the broker connection is active.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// Match reports whether topic matches an MQTT topic filter with the
// single-level (+) and multi-level (#) wildcards.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")

	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
