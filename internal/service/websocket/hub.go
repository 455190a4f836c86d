package websocket

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trafficserver/internal/logger"
	"trafficserver/internal/service/traffic"
)

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	// DefaultWriteWait bounds a single write to a channel.
	DefaultWriteWait = 10 * time.Second
	outboxSize       = 4
)

// Channel is one registered connection. It owns the rate-limit gate of the
// device behind it, so every device is paced by its own clocks.
type Channel struct {
	ID          string
	Device      string
	ConnectedAt time.Time
	Gate        *traffic.Gate

	conn      Conn
	writeWait time.Duration
	writeMu   sync.Mutex
	closeOnce sync.Once
	outbox    chan []byte
	done      chan struct{}
}

// Send writes one text message. Concurrent senders are serialized so a
// message is always written whole. A peer that does not take the message
// within the write wait fails the write.
func (c *Channel) Send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wait := c.writeWait
	if wait <= 0 {
		wait = DefaultWriteWait
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// SendJSON encodes v and writes it as one text message.
func (c *Channel) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Ping sends a ping control frame.
func (c *Channel) Ping(timeout time.Duration) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *Channel) close() {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
		c.conn.Close()
	})
}

// ChannelInfo describes a registered channel for status reporting.
type ChannelInfo struct {
	ID          string    `json:"id"`
	Device      string    `json:"device"`
	ConnectedAt time.Time `json:"connected_at"`
}

// HubService tracks active channels and broadcasts to them.
type HubService struct {
	name      string
	channels  map[string]*Channel
	mutex     sync.RWMutex
	writeWait time.Duration
	logger    *logger.Logger
}

// NewHubService creates an empty hub. name is used in log lines only.
func NewHubService(name string, logger *logger.Logger) *HubService {
	return &HubService{
		name:      name,
		channels:  make(map[string]*Channel),
		writeWait: DefaultWriteWait,
		logger:    logger,
	}
}

// Register adds a connection and returns its channel handle.
func (h *HubService) Register(device string, conn Conn) *Channel {
	ch := &Channel{
		ID:          uuid.NewString(),
		Device:      device,
		ConnectedAt: time.Now(),
		Gate:        &traffic.Gate{},
		conn:        conn,
		writeWait:   h.writeWait,
		outbox:      make(chan []byte, outboxSize),
		done:        make(chan struct{}),
	}
	go h.pump(ch)

	h.mutex.Lock()
	h.channels[ch.ID] = ch
	total := len(h.channels)
	h.mutex.Unlock()

	h.logger.Info("%s connected: device=%s channel=%s total=%d", h.name, device, ch.ID, total)
	return ch
}

// Unregister removes the channel and closes its connection. It reports
// whether the channel was still registered; repeated calls are no-ops.
func (h *HubService) Unregister(id string) bool {
	h.mutex.Lock()
	ch, ok := h.channels[id]
	if ok {
		delete(h.channels, id)
	}
	total := len(h.channels)
	h.mutex.Unlock()

	if !ok {
		return false
	}
	ch.close()
	h.logger.Info("%s disconnected: device=%s channel=%s total=%d", h.name, ch.Device, id, total)
	return true
}

// Broadcast delivers message to every channel registered when the call
// started. Each channel is written independently; a channel whose write
// fails is unregistered. It returns the number of successful deliveries.
func (h *HubService) Broadcast(message []byte) int {
	targets := h.snapshot()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, ch := range targets {
		wg.Add(1)
		go func(ch *Channel) {
			defer wg.Done()
			if err := ch.Send(message); err != nil {
				h.logger.Error("%s: error sending to device=%s channel=%s: %v", h.name, ch.Device, ch.ID, err)
				h.Unregister(ch.ID)
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return delivered
}

// Offer queues message for every channel without waiting for the writes.
// A channel whose queue is full misses the message. It returns the number
// of channels the message was queued for.
func (h *HubService) Offer(message []byte) int {
	queued := 0
	for _, ch := range h.snapshot() {
		select {
		case ch.outbox <- message:
			queued++
		default:
		}
	}
	return queued
}

// pump writes queued messages to ch until it is closed.
func (h *HubService) pump(ch *Channel) {
	for {
		select {
		case <-ch.done:
			return
		case msg := <-ch.outbox:
			if err := ch.Send(msg); err != nil {
				h.logger.Error("%s: error sending to device=%s channel=%s: %v", h.name, ch.Device, ch.ID, err)
				h.Unregister(ch.ID)
				return
			}
		}
	}
}

// Get returns the channel with the given id.
func (h *HubService) Get(id string) (*Channel, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	ch, ok := h.channels[id]
	return ch, ok
}

// Channels returns the registered channels ordered by connect time.
func (h *HubService) Channels() []ChannelInfo {
	targets := h.snapshot()
	infos := make([]ChannelInfo, 0, len(targets))
	for _, ch := range targets {
		infos = append(infos, ChannelInfo{ID: ch.ID, Device: ch.Device, ConnectedAt: ch.ConnectedAt})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// GetClientCount returns the number of registered channels.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.channels)
}

// CloseAll unregisters every channel.
func (h *HubService) CloseAll() {
	for _, ch := range h.snapshot() {
		h.Unregister(ch.ID)
	}
}

func (h *HubService) snapshot() []*Channel {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	channels := make([]*Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		channels = append(channels, ch)
	}
	return channels
}
