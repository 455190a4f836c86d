package model

import "time"

// Snapshot represents a still image captured from a device's frame.
type Snapshot struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Device    string    `json:"device"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// SnapshotFilter contains filtering options for querying snapshots.
type SnapshotFilter struct {
	Device string
	Limit  int
	Offset int
}
