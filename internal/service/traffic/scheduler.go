package traffic

import (
	"sync"
	"time"

	"trafficserver/internal/model"
)

// Gate holds the rate-limit clocks of a single device channel.
// The zero value is ready to use: the first frame is always processed
// and the first decision is always published.
type Gate struct {
	mu            sync.Mutex
	lastProcessed time.Time
	lastPublished time.Time
	processed     bool
	published     bool
}

// GateState is a point-in-time copy of a Gate.
type GateState struct {
	LastProcessed time.Time
	LastPublished time.Time
	Processed     bool
	Published     bool
}

// State returns a copy of the gate's clocks.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateState{
		LastProcessed: g.lastProcessed,
		LastPublished: g.lastPublished,
		Processed:     g.processed,
		Published:     g.published,
	}
}

// Scheduler applies the inference gate and the publish gate.
type Scheduler struct {
	minInference time.Duration
	minPublish   time.Duration
	zoneCount    int
	now          func() time.Time
}

// NewScheduler creates a Scheduler. A nil now uses time.Now, whose readings
// carry the monotonic clock so wall-clock adjustments do not affect the gates.
func NewScheduler(minInference, minPublish time.Duration, zoneCount int, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		minInference: minInference,
		minPublish:   minPublish,
		zoneCount:    zoneCount,
		now:          now,
	}
}

// Admit applies the inference gate. It returns ok=false when the previous
// frame on this gate was processed less than the minimum interval ago.
// Admit never changes the gate; the returned ticket is handed to Commit once
// detection succeeded.
func (s *Scheduler) Admit(g *Gate) (ticket time.Time, ok bool) {
	now := s.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.processed && now.Sub(g.lastProcessed) < s.minInference {
		return time.Time{}, false
	}
	return now, true
}

// Commit marks the admitted frame as processed and applies the publish gate.
// It returns nil when the last command on this gate is more recent than the
// minimum publish delay, otherwise the command for the busiest zone.
func (s *Scheduler) Commit(g *Gate, ticket time.Time, counts model.ZoneCounts, device string) *model.Command {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastProcessed = ticket
	g.processed = true

	now := s.now()
	if g.published && now.Sub(g.lastPublished) < s.minPublish {
		return nil
	}

	g.lastPublished = now
	g.published = true
	return &model.Command{
		Zone:     Busiest(counts, s.zoneCount),
		IssuedAt: now,
		Device:   device,
		Source:   model.SourceAuto,
	}
}
