// Package dispatch delivers traffic commands to devices and the broker.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"trafficserver/internal/dto"
	"trafficserver/internal/logger"
	"trafficserver/internal/model"
	"trafficserver/internal/service/broker"
)

var (
	// ErrInvalidZone is returned by Override for input that is not a zone id.
	ErrInvalidZone = errors.New("invalid zone")
	// ErrUnavailable is returned by Override when no transport took the command.
	ErrUnavailable = errors.New("no transport available")
)

// Broadcaster writes a message to every connected device channel.
type Broadcaster interface {
	Broadcast(message []byte) int
}

// Recorder accepts telemetry records.
type Recorder interface {
	Record(topic, payload string)
}

// Delivery reports where a command went.
type Delivery struct {
	Channels  int
	Broker    bool
	BrokerErr error
}

// Delivered reports whether at least one transport took the command.
func (d Delivery) Delivered() bool {
	return d.Channels > 0 || d.Broker
}

// Dispatcher records and delivers commands.
type Dispatcher struct {
	devices   Broadcaster
	broker    broker.Publisher
	recorder  Recorder
	topic     string
	zoneCount int
	now       func() time.Time
	logger    *logger.Logger
}

// NewDispatcher creates a Dispatcher. publisher may be nil when no broker
// is configured.
func NewDispatcher(devices Broadcaster, publisher broker.Publisher, recorder Recorder, topic string, zoneCount int, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		devices:   devices,
		broker:    publisher,
		recorder:  recorder,
		topic:     topic,
		zoneCount: zoneCount,
		now:       time.Now,
		logger:    logger,
	}
}

// Dispatch records one telemetry entry for cmd and delivers it. Manual
// commands are broadcast to every device channel; every command is
// published to the broker. The transports run concurrently and a failure
// of one does not affect the other.
func (d *Dispatcher) Dispatch(cmd model.Command) Delivery {
	zone := cmd.Zone.String()
	d.recorder.Record(d.topic, zone)

	var (
		wg       sync.WaitGroup
		delivery Delivery
	)

	if cmd.Source == model.SourceManual {
		msg, err := json.Marshal(dto.NewForceCommand(cmd.Zone))
		if err != nil {
			d.logger.Error("Failed to encode override for zone %s: %v", zone, err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				delivery.Channels = d.devices.Broadcast(msg)
			}()
		}
	}

	if d.broker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.broker.PublishCommand(zone); err != nil {
				delivery.BrokerErr = err
				d.logger.Warning("Broker publish of zone %s failed: %v", zone, err)
				return
			}
			delivery.Broker = true
		}()
	} else {
		delivery.BrokerErr = errors.New("broker disabled")
	}

	wg.Wait()
	d.logger.Info("Command zone=%s source=%s device=%q channels=%d broker=%v", zone, cmd.Source, cmd.Device, delivery.Channels, delivery.Broker)
	return delivery
}

// ParseZone accepts only the canonical decimal form of a zone id in
// 1..zoneCount.
func ParseZone(raw string, zoneCount int) (model.ZoneID, error) {
	z, err := strconv.Atoi(raw)
	if err != nil || strconv.Itoa(z) != raw || z < 1 || z > zoneCount {
		return 0, fmt.Errorf("%w: %q must be one of 1..%d", ErrInvalidZone, raw, zoneCount)
	}
	return model.ZoneID(z), nil
}

// Override validates raw and dispatches it as a manual command, bypassing
// the publish gate. Invalid input touches no state.
func (d *Dispatcher) Override(raw string) (model.Command, Delivery, error) {
	zone, err := ParseZone(raw, d.zoneCount)
	if err != nil {
		return model.Command{}, Delivery{}, err
	}

	cmd := model.Command{
		Zone:     zone,
		IssuedAt: d.now(),
		Source:   model.SourceManual,
	}
	delivery := d.Dispatch(cmd)
	if !delivery.Delivered() {
		return cmd, delivery, fmt.Errorf("%w: zone %s reached no device and broker: %v", ErrUnavailable, raw, delivery.BrokerErr)
	}
	return cmd, delivery, nil
}
