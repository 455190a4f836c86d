package dto

import (
	"time"

	"trafficserver/internal/model"
	"trafficserver/internal/service/websocket"
)

// OverrideResponse is returned by POST /traffic/{cmd}.
type OverrideResponse struct {
	Status   string `json:"status"`
	Cmd      string `json:"cmd"`
	Channels int    `json:"channels"`
	Broker   bool   `json:"broker"`
}

// DecisionConfig reports the active decision policy.
type DecisionConfig struct {
	MinInferenceInterval string   `json:"min_inference_interval"`
	MinPublishDelay      string   `json:"min_publish_delay"`
	VehicleLabels        []string `json:"vehicle_labels"`
	ZoneCount            int      `json:"zone_count"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Devices         []websocket.ChannelInfo `json:"devices"`
	Viewers         int                     `json:"viewers"`
	CachedFrames    []string                `json:"cached_frames"`
	BrokerEnabled   bool                    `json:"broker_enabled"`
	BrokerConnected bool                    `json:"broker_connected"`
	Decision        DecisionConfig          `json:"decision"`
	Time            time.Time               `json:"time"`
}

// SnapshotsData is a paginated response payload for the snapshot list.
type SnapshotsData struct {
	Snapshots   []model.Snapshot `json:"snapshots"`
	Length      int              `json:"length"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"pageSize"`
}

// TelemetryData lists recent telemetry records.
type TelemetryData struct {
	Records []model.TelemetryRecord `json:"records"`
	Total   int                     `json:"total"`
}
