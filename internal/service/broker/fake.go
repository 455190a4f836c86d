package broker

import "sync"

// FakePublisher records published commands for test assertions. It is safe
// for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	commands     []string
	handlers     map[string]MessageHandler
	publishError error
	connected    bool
	closed       bool
}

// NewFakePublisher creates a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		handlers:  make(map[string]MessageHandler),
		connected: true,
	}
}

// PublishCommand records the zone.
func (f *FakePublisher) PublishCommand(zone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishError != nil {
		return f.publishError
	}
	f.commands = append(f.commands, zone)
	return nil
}

// Subscribe stores handler for Deliver.
func (f *FakePublisher) Subscribe(filter string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[filter] = handler
	return nil
}

// Deliver simulates an inbound message on topic. It returns the number of
// handlers that received it.
func (f *FakePublisher) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	var matched []MessageHandler
	for filter, h := range f.handlers {
		if Match(filter, topic) {
			matched = append(matched, h)
		}
	}
	f.mu.Unlock()

	for _, h := range matched {
		h(topic, payload)
	}
	return len(matched)
}

// Commands returns the published zones in order.
func (f *FakePublisher) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// SetPublishError makes PublishCommand fail with err; nil clears it.
func (f *FakePublisher) SetPublishError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishError = err
}

// SetConnected controls the return value of IsConnected.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

// IsConnected reports whether the fake is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
