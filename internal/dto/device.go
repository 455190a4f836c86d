package dto

import (
	"encoding/json"

	"trafficserver/internal/model"
)

// Error kinds reported to devices in an ErrorAck.
const (
	ErrorMalformedInput = "malformed_input"
	ErrorModelFailure   = "model_failure"
)

// Detection marshals as the array [x1, y1, x2, y2, label, confidence].
type Detection model.Detection

// MarshalJSON encodes the detection in array form.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.Label, d.Confidence})
}

// NewDetections converts model detections for the wire. The result is
// never nil so it encodes as [].
func NewDetections(detections []model.Detection) []Detection {
	out := make([]Detection, len(detections))
	for i, d := range detections {
		out[i] = Detection(d)
	}
	return out
}

// DeviceResponse is the reply to a processed frame.
type DeviceResponse struct {
	Detections []Detection      `json:"detections"`
	ZoneCounts model.ZoneCounts `json:"zone_counts"`
	Command    *string          `json:"command"`
	Skipped    bool             `json:"skipped"`
}

// SkippedResponse is the reply to a frame dropped by the inference gate.
type SkippedResponse struct {
	Status     string      `json:"status"`
	Skipped    bool        `json:"skipped"`
	Detections []Detection `json:"detections"`
	Command    *string     `json:"command"`
}

// NewSkippedResponse builds the skipped reply.
func NewSkippedResponse() SkippedResponse {
	return SkippedResponse{Status: "skipped", Skipped: true, Detections: []Detection{}}
}

// ErrorAck tells the device its message could not be processed.
type ErrorAck struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewErrorAck builds an error acknowledgement of the given kind.
func NewErrorAck(kind, message string) ErrorAck {
	return ErrorAck{Status: "error", Error: kind, Message: message}
}

// SensorEvent is a JSON message from a device or the broker carrying a
// sensor reading rather than a frame.
type SensorEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// PayloadString returns the payload as stored in telemetry: JSON strings
// are unquoted, anything else is kept verbatim.
func (e SensorEvent) PayloadString() string {
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return s
	}
	return string(e.Payload)
}

// ForceCommand is broadcast to every device on a manual override.
type ForceCommand struct {
	Type string `json:"type"`
	Val  string `json:"val"`
}

// NewForceCommand builds the override message for zone.
func NewForceCommand(zone model.ZoneID) ForceCommand {
	return ForceCommand{Type: "FORCE_COMMAND", Val: zone.String()}
}

// FramePreview is sent to viewers for every frame a device delivers.
// Image encodes as base64.
type FramePreview struct {
	Device string `json:"device"`
	Image  []byte `json:"image"`
}
