// Package telemetry forwards telemetry records to the durable stores.
package telemetry

import (
	"context"
	"sync"
	"time"

	"trafficserver/internal/logger"
	"trafficserver/internal/model"
)

// appendTimeout bounds a single sink write.
const appendTimeout = 5 * time.Second

// Sink is a durable store of telemetry records.
type Sink interface {
	Name() string
	Append(ctx context.Context, rec model.TelemetryRecord) error
}

type sinkWorker struct {
	sink  Sink
	queue chan model.TelemetryRecord
}

// Recorder stamps records and hands them to every sink. Each sink has its
// own bounded queue and worker, so a slow or failing store never blocks the
// caller or the other stores. Delivery is at most once.
type Recorder struct {
	logger  *logger.Logger
	now     func() time.Time
	workers []*sinkWorker
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// NewRecorder starts one worker per sink. A nil now uses time.Now.
func NewRecorder(logger *logger.Logger, queueSize int, now func() time.Time, sinks ...Sink) *Recorder {
	if now == nil {
		now = time.Now
	}
	if queueSize < 1 {
		queueSize = 1
	}

	r := &Recorder{logger: logger, now: now}
	for _, sink := range sinks {
		w := &sinkWorker{sink: sink, queue: make(chan model.TelemetryRecord, queueSize)}
		r.workers = append(r.workers, w)
		r.wg.Add(1)
		go r.run(w)
	}
	return r
}

// Record stamps a record with the local clock and enqueues it for every
// sink. It never blocks; a sink whose queue is full loses the record.
func (r *Recorder) Record(topic, payload string) {
	rec := model.TelemetryRecord{
		Topic:          topic,
		Payload:        payload,
		LocalTimestamp: r.now(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warning("Telemetry recorder closed, dropping %s", topic)
		return
	}

	for _, w := range r.workers {
		select {
		case w.queue <- rec:
		default:
			r.logger.Warning("Telemetry queue of %s full, dropping %s", w.sink.Name(), topic)
		}
	}
}

// Close stops accepting records and waits until every queued record has
// been handed to its sink.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, w := range r.workers {
		close(w.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) run(w *sinkWorker) {
	defer r.wg.Done()

	for rec := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := w.sink.Append(ctx, rec); err != nil {
			r.logger.Error("Telemetry sink %s failed for %s: %v", w.sink.Name(), rec.Topic, err)
		}
		cancel()
	}
}
