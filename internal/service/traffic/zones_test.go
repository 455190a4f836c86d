package traffic

import (
	"math/rand"
	"testing"

	"trafficserver/internal/model"
)

var vehicles = []string{"car", "truck", "bus", "motorbike"}

func det(x1, x2 int, label string) model.Detection {
	return model.Detection{
		Box:        model.BoundingBox{X1: x1, Y1: 10, X2: x2, Y2: 50},
		Label:      label,
		Confidence: 0.9,
	}
}

func TestPartition_Example(t *testing.T) {
	zones := Partition(900, 3)
	want := []Zone{
		{ID: 1, Start: 0, End: 300},
		{ID: 2, Start: 300, End: 600},
		{ID: 3, Start: 600, End: 900},
	}

	if len(zones) != len(want) {
		t.Fatalf("Expected %d zones, got %d", len(want), len(zones))
	}
	for i := range want {
		if zones[i] != want[i] {
			t.Errorf("zone %d: got %+v, want %+v", i, zones[i], want[i])
		}
	}
}

func TestPartition_LastZoneAbsorbsRemainder(t *testing.T) {
	zones := Partition(641, 3)
	if zones[2].Start != 426 || zones[2].End != 641 {
		t.Errorf("Expected last zone [426,641), got [%d,%d)", zones[2].Start, zones[2].End)
	}
}

func TestPartition_CoversWidthWithoutGaps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		width := rng.Intn(4000)
		count := 1 + rng.Intn(8)

		zones := Partition(width, count)
		if len(zones) != count {
			t.Fatalf("Partition(%d, %d): got %d zones", width, count, len(zones))
		}
		if zones[0].Start != 0 {
			t.Errorf("Partition(%d, %d): first zone starts at %d", width, count, zones[0].Start)
		}
		if zones[count-1].End != width {
			t.Errorf("Partition(%d, %d): last zone ends at %d", width, count, zones[count-1].End)
		}
		for j := 1; j < count; j++ {
			if zones[j].Start != zones[j-1].End {
				t.Errorf("Partition(%d, %d): gap or overlap between zone %d and %d", width, count, j, j+1)
			}
		}

		// Every pixel belongs to exactly one zone.
		for x := 0; x < width; x += 1 + width/50 {
			hits := 0
			for _, z := range zones {
				if z.Contains(x) {
					hits++
				}
			}
			if hits != 1 {
				t.Errorf("Partition(%d, %d): pixel %d in %d zones", width, count, x, hits)
			}
		}
	}
}

func TestPartition_InvalidCount(t *testing.T) {
	if zones := Partition(900, 0); zones != nil {
		t.Errorf("Expected nil for zero zones, got %v", zones)
	}
}

func TestAggregate_Example(t *testing.T) {
	a := NewAggregator(vehicles, 3)
	detections := []model.Detection{
		det(40, 60, "car"),
		det(600, 640, "bus"),
		det(630, 650, "car"),
		det(0, 20, "person"),
	}

	counts := a.Aggregate(900, 600, detections)

	want := model.ZoneCounts{1: 1, 2: 0, 3: 2}
	for zone, n := range want {
		if counts[zone] != n {
			t.Errorf("zone %d: got %d, want %d", zone, counts[zone], n)
		}
	}
	if len(counts) != 3 {
		t.Errorf("Expected 3 zones in counts, got %d", len(counts))
	}
	if busiest := Busiest(counts, 3); busiest != 3 {
		t.Errorf("Expected busiest zone 3, got %d", busiest)
	}
}

func TestAggregate_NoDetections(t *testing.T) {
	a := NewAggregator(vehicles, 3)
	counts := a.Aggregate(900, 600, nil)

	for zone := model.ZoneID(1); zone <= 3; zone++ {
		n, ok := counts[zone]
		if !ok || n != 0 {
			t.Errorf("zone %d: expected present with 0, got %d (present=%v)", zone, n, ok)
		}
	}
}

func TestAggregate_DropsOutOfFrameMidpoints(t *testing.T) {
	a := NewAggregator(vehicles, 3)
	detections := []model.Detection{
		det(890, 950, "car"),   // midpoint 920 >= width
		det(-50, -10, "car"),   // negative midpoint
		det(898, 900, "truck"), // midpoint 899, last pixel
	}

	counts := a.Aggregate(900, 600, detections)
	if counts.Total() != 1 || counts[3] != 1 {
		t.Errorf("Expected only the in-frame truck counted in zone 3, got %v", counts)
	}
}

func TestAggregate_SumMatchesQualifyingDetections(t *testing.T) {
	labels := []string{"car", "truck", "bus", "motorbike", "person", "dog", "bicycle"}
	rng := rand.New(rand.NewSource(7))
	a := NewAggregator(vehicles, 3)

	for i := 0; i < 200; i++ {
		width := 1 + rng.Intn(1920)
		var detections []model.Detection
		expected := 0
		n := rng.Intn(30)
		for j := 0; j < n; j++ {
			x1 := rng.Intn(width + 200)
			x2 := x1 + rng.Intn(200)
			label := labels[rng.Intn(len(labels))]
			d := det(x1, x2, label)
			detections = append(detections, d)
			if a.IsVehicle(label) && d.Midpoint() < width {
				expected++
			}
		}

		counts := a.Aggregate(width, 480, detections)
		if counts.Total() != expected {
			t.Errorf("width %d: sum of counts %d, expected %d", width, counts.Total(), expected)
		}
	}
}

func TestBusiest_TieGoesToLowestZone(t *testing.T) {
	tests := []struct {
		name   string
		counts model.ZoneCounts
		want   model.ZoneID
	}{
		{"all zero", model.ZoneCounts{1: 0, 2: 0, 3: 0}, 1},
		{"tie 2 and 3", model.ZoneCounts{1: 0, 2: 4, 3: 4}, 2},
		{"tie all", model.ZoneCounts{1: 2, 2: 2, 3: 2}, 1},
		{"clear winner", model.ZoneCounts{1: 1, 2: 5, 3: 3}, 2},
		{"missing zones read as zero", model.ZoneCounts{3: 1}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Busiest(tt.counts, 3); got != tt.want {
				t.Errorf("Busiest(%v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}
