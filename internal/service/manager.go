package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/gorilla/websocket"

	"trafficserver/internal/config"
	"trafficserver/internal/dto"
	"trafficserver/internal/logger"
	"trafficserver/internal/model"
	"trafficserver/internal/service/broker"
	"trafficserver/internal/service/dispatch"
	"trafficserver/internal/service/storage"
	"trafficserver/internal/service/traffic"
	hub "trafficserver/internal/service/websocket"
)

// FrameDecoder decodes an encoded image once per frame.
type FrameDecoder interface {
	Decode(data []byte) (model.Image, error)
}

// Detector runs object detection on a decoded image.
type Detector interface {
	Detect(img model.Image) ([]model.Detection, error)
}

// CommandDispatcher delivers decided commands.
type CommandDispatcher interface {
	Dispatch(cmd model.Command) dispatch.Delivery
}

// TelemetryRecorder accepts telemetry records.
type TelemetryRecorder interface {
	Record(topic, payload string)
}

// SnapshotCapturer stores still images of cached frames.
type SnapshotCapturer interface {
	Capture(frame model.Frame, reason string) bool
}

// ViewerHub receives frame previews. Offer must not wait for the writes.
type ViewerHub interface {
	Offer(message []byte) int
	GetClientCount() int
}

// Manager runs the decision cycle for every device message.
type Manager struct {
	frames        *storage.FrameCache
	scheduler     *traffic.Scheduler
	aggregator    *traffic.Aggregator
	decoder       FrameDecoder
	detector      Detector
	dispatcher    CommandDispatcher
	recorder      TelemetryRecorder
	snapshots     SnapshotCapturer
	viewers       ViewerHub
	snapshotTopic string
	logger        *logger.Logger
	now           func() time.Time
}

// NewManager wires the decision cycle. snapshots and viewers may be nil.
func NewManager(cfg *config.Config, frames *storage.FrameCache, decoder FrameDecoder, detector Detector,
	dispatcher CommandDispatcher, recorder TelemetryRecorder, snapshots SnapshotCapturer, viewers ViewerHub,
	logger *logger.Logger) *Manager {
	m := &Manager{
		frames:        frames,
		scheduler:     traffic.NewScheduler(cfg.Policy.MinInferenceInterval, cfg.Policy.MinPublishDelay, cfg.Policy.ZoneCount, nil),
		aggregator:    traffic.NewAggregator(cfg.Policy.VehicleLabels, cfg.Policy.ZoneCount),
		decoder:       decoder,
		detector:      detector,
		dispatcher:    dispatcher,
		recorder:      recorder,
		snapshots:     snapshots,
		viewers:       viewers,
		snapshotTopic: cfg.SnapshotTopic,
		logger:        logger,
		now:           time.Now,
	}

	m.logger.Info("Manager started - inference every %v, publish every %v, %d zones",
		cfg.Policy.MinInferenceInterval, cfg.Policy.MinPublishDelay, cfg.Policy.ZoneCount)
	return m
}

// Frames returns the frame cache.
func (m *Manager) Frames() *storage.FrameCache {
	return m.frames
}

// HandleMessage classifies one inbound message from ch and handles it.
// Text starting with '{' is a sensor event, other text is a base64 frame,
// binary messages are raw frame bytes.
func (m *Manager) HandleMessage(ch *hub.Channel, messageType int, data []byte) CycleResult {
	switch messageType {
	case websocket.TextMessage:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return m.handleDeviceEvent(ch, trimmed)
		}
		raw, err := decodeBase64(trimmed)
		if err != nil {
			m.logger.Warning("Device %s sent invalid base64: %v", ch.Device, err)
			return errorResult(dto.ErrorMalformedInput, fmt.Errorf("invalid base64 frame: %w", err))
		}
		return m.HandleFrame(ch, raw)
	case websocket.BinaryMessage:
		return m.HandleFrame(ch, data)
	}
	return errorResult(dto.ErrorMalformedInput, fmt.Errorf("unsupported message type %d", messageType))
}

func decodeBase64(data []byte) ([]byte, error) {
	if i := bytes.Index(data, []byte(";base64,")); i >= 0 && bytes.HasPrefix(data, []byte("data:")) {
		data = data[i+len(";base64,"):]
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (m *Manager) handleDeviceEvent(ch *hub.Channel, data []byte) CycleResult {
	var ev dto.SensorEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errorResult(dto.ErrorMalformedInput, fmt.Errorf("invalid sensor event: %w", err))
	}
	if ev.Topic == "" {
		return errorResult(dto.ErrorMalformedInput, fmt.Errorf("sensor event without topic"))
	}

	m.HandleSensorEvent(ch.Device, ev.Topic, ev.PayloadString())
	return CycleResult{Kind: CycleSensor}
}

// HandleFrame runs one decision cycle on an encoded frame from ch. The
// frame is cached before the inference gate is consulted. Failures leave
// the channel's gate untouched.
func (m *Manager) HandleFrame(ch *hub.Channel, data []byte) CycleResult {
	img, err := m.decoder.Decode(data)
	if err != nil {
		m.logger.Warning("Device %s sent an undecodable frame: %v", ch.Device, err)
		return errorResult(dto.ErrorMalformedInput, err)
	}
	defer img.Close()
	width, height := img.Size()

	frame := model.Frame{Device: ch.Device, Data: data, Width: width, Height: height, ReceivedAt: m.now()}
	m.frames.Put(frame)
	m.sendToViewers(frame)

	ticket, ok := m.scheduler.Admit(ch.Gate)
	if !ok {
		return CycleResult{Kind: CycleSkipped}
	}

	detections, err := m.detector.Detect(img)
	if err != nil {
		m.logger.Error("Detection failed for device %s: %v", ch.Device, err)
		return errorResult(dto.ErrorModelFailure, err)
	}

	counts := m.aggregator.Aggregate(width, height, detections)
	cmd := m.scheduler.Commit(ch.Gate, ticket, counts, ch.Device)
	if cmd != nil {
		m.logger.Info("Decision: green to zone %s for device %s (counts %v)", cmd.Zone, ch.Device, counts)
		m.dispatcher.Dispatch(*cmd)
	}

	return CycleResult{
		Kind:       CycleProcessed,
		Detections: detections,
		Counts:     counts,
		Command:    cmd,
	}
}

func (m *Manager) sendToViewers(frame model.Frame) {
	if m.viewers == nil || m.viewers.GetClientCount() == 0 {
		return
	}
	msg, err := json.Marshal(dto.FramePreview{Device: frame.Device, Image: frame.Data})
	if err != nil {
		m.logger.Error("Failed to encode preview for %s: %v", frame.Device, err)
		return
	}
	m.viewers.Offer(msg)
}

// HandleSensorEvent records a sensor reading and captures snapshots when
// the topic matches the snapshot topic. device is empty for events that
// arrived through the broker; those capture every cached device.
func (m *Manager) HandleSensorEvent(device, topic, payload string) {
	m.recorder.Record(topic, payload)

	if m.snapshots == nil || m.snapshotTopic == "" || !broker.Match(m.snapshotTopic, topic) {
		return
	}

	reason := path.Base(topic)
	devices := []string{device}
	if device == "" {
		devices = m.frames.Devices()
	}
	for _, d := range devices {
		frame, ok := m.frames.Get(d)
		if !ok {
			m.logger.Warning("Sensor event %s for device %s but no frame cached", topic, d)
			continue
		}
		m.snapshots.Capture(frame, reason)
	}
}

// HandleBrokerMessage is the broker subscription callback.
func (m *Manager) HandleBrokerMessage(topic string, payload []byte) {
	m.HandleSensorEvent("", topic, string(payload))
}
