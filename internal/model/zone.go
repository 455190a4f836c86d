package model

import "strconv"

// ZoneID identifies a lane zone. Zones are numbered from 1.
type ZoneID int

// String returns the zone in the form devices and operators use ("1", "2", ...).
func (z ZoneID) String() string {
	return strconv.Itoa(int(z))
}

// ZoneCounts maps each zone to the number of vehicles seen in it during one cycle.
type ZoneCounts map[ZoneID]int

// Total returns the sum of all zone counts.
func (c ZoneCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
