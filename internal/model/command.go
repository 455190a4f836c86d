package model

import "time"

// CommandSource tells where a priority decision came from.
type CommandSource string

const (
	SourceAuto   CommandSource = "auto"
	SourceManual CommandSource = "manual"
)

// Command is a green-light priority decision for one zone.
type Command struct {
	Zone     ZoneID
	IssuedAt time.Time
	Device   string // empty for manual overrides
	Source   CommandSource
}
