package model

import "time"

// TelemetryRecord is an append-only fact forwarded to the durable stores.
type TelemetryRecord struct {
	Topic           string    `json:"topic"`
	Payload         string    `json:"payload"`
	ServerTimestamp time.Time `json:"ts"`
	LocalTimestamp  time.Time `json:"ts_local"`
}
