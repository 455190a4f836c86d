package broker

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"trafficserver/internal/logger"
)

const (
	// commandQoS is at-least-once.
	commandQoS  = 1
	sensorQoS   = 0
	waitTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker       string
	ClientID     string
	CommandTopic string
}

// RealPublisher talks to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topic  string
	logger *logger.Logger

	mu            sync.Mutex
	connected     bool
	subscriptions map[string]MessageHandler
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(opts Options, logger *logger.Logger) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:         opts.CommandTopic,
		logger:        logger,
		subscriptions: make(map[string]MessageHandler),
	}

	paho.ERROR = logger.ErrorLogger()

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(p.handleOnConnect).
		SetConnectionLostHandler(p.handleConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) handleOnConnect(client paho.Client) {
	p.mu.Lock()
	p.connected = true
	subs := make(map[string]MessageHandler, len(p.subscriptions))
	for filter, h := range p.subscriptions {
		subs[filter] = h
	}
	p.mu.Unlock()

	p.logger.Info("MQTT connected")
	for filter, h := range subs {
		if err := p.subscribe(filter, h); err != nil {
			p.logger.Error("MQTT resubscribe to %s failed: %v", filter, err)
		}
	}
}

func (p *RealPublisher) handleConnectionLost(client paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
}

// PublishCommand sends the zone to the command topic, not retained.
func (p *RealPublisher) PublishCommand(zone string) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	token := p.client.Publish(p.topic, commandQoS, false, zone)
	if !token.WaitTimeout(waitTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe registers handler for filter and subscribes immediately.
func (p *RealPublisher) Subscribe(filter string, handler MessageHandler) error {
	p.mu.Lock()
	p.subscriptions[filter] = handler
	p.mu.Unlock()

	return p.subscribe(filter, handler)
}

func (p *RealPublisher) subscribe(filter string, handler MessageHandler) error {
	token := p.client.Subscribe(filter, sensorQoS, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(waitTimeout) {
		return fmt.Errorf("subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

// IsConnected reports whether the client is currently connected.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
