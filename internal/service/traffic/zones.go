// Package traffic contains the zone counting and decision pacing logic.
// It has no I/O; time is injected so the gates can be tested deterministically.
package traffic

import "trafficserver/internal/model"

// Zone is a half-open horizontal pixel interval [Start, End).
type Zone struct {
	ID    model.ZoneID
	Start int
	End   int
}

// Contains reports whether x falls inside the zone.
func (z Zone) Contains(x int) bool {
	return z.Start <= x && x < z.End
}

// Partition splits [0, width) into count contiguous zones of equal integer
// width. The last zone absorbs the remainder so the union is exactly [0, width).
func Partition(width, count int) []Zone {
	if count < 1 || width < 0 {
		return nil
	}

	zoneWidth := width / count
	zones := make([]Zone, count)
	for i := 0; i < count; i++ {
		zones[i] = Zone{
			ID:    model.ZoneID(i + 1),
			Start: i * zoneWidth,
			End:   (i + 1) * zoneWidth,
		}
	}
	zones[count-1].End = width
	return zones
}

// Aggregator counts vehicle detections per zone.
type Aggregator struct {
	vehicles  map[string]struct{}
	zoneCount int
}

// NewAggregator creates an Aggregator for the given vehicle labels and zone count.
func NewAggregator(vehicleLabels []string, zoneCount int) *Aggregator {
	vehicles := make(map[string]struct{}, len(vehicleLabels))
	for _, label := range vehicleLabels {
		vehicles[label] = struct{}{}
	}
	return &Aggregator{vehicles: vehicles, zoneCount: zoneCount}
}

// ZoneCount returns the number of zones each frame is split into.
func (a *Aggregator) ZoneCount() int {
	return a.zoneCount
}

// IsVehicle reports whether label counts towards the decision.
func (a *Aggregator) IsVehicle(label string) bool {
	_, ok := a.vehicles[label]
	return ok
}

// Aggregate counts the vehicle detections of one frame per zone. Every zone
// is present in the result, zero detections give all-zero counts, and
// detections whose midpoint falls outside the frame are dropped.
func (a *Aggregator) Aggregate(width, height int, detections []model.Detection) model.ZoneCounts {
	zones := Partition(width, a.zoneCount)
	counts := make(model.ZoneCounts, len(zones))
	for _, z := range zones {
		counts[z.ID] = 0
	}

	for _, det := range detections {
		if !a.IsVehicle(det.Label) {
			continue
		}
		mid := det.Midpoint()
		for _, z := range zones {
			if z.Contains(mid) {
				counts[z.ID]++
				break
			}
		}
	}
	return counts
}

// Busiest returns the zone with the highest count among zones 1..zoneCount.
// Ties go to the lowest zone id.
func Busiest(counts model.ZoneCounts, zoneCount int) model.ZoneID {
	best := model.ZoneID(1)
	bestCount := -1
	for i := 1; i <= zoneCount; i++ {
		id := model.ZoneID(i)
		if n := counts[id]; n > bestCount {
			best, bestCount = id, n
		}
	}
	return best
}
