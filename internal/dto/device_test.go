package dto

import (
	"encoding/json"
	"testing"

	"trafficserver/internal/model"
)

func TestDeviceResponse_WireFormat(t *testing.T) {
	cmd := "3"
	resp := DeviceResponse{
		Detections: NewDetections([]model.Detection{
			{Box: model.BoundingBox{X1: 40, Y1: 10, X2: 60, Y2: 50}, Label: "car", Confidence: 0.5},
		}),
		ZoneCounts: model.ZoneCounts{1: 1, 2: 0, 3: 2},
		Command:    &cmd,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"detections":[[40,10,60,50,"car",0.5]],"zone_counts":{"1":1,"2":0,"3":2},"command":"3","skipped":false}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}

func TestDeviceResponse_NullCommandAndEmptyDetections(t *testing.T) {
	resp := DeviceResponse{Detections: NewDetections(nil), ZoneCounts: model.ZoneCounts{1: 0}}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"detections":[],"zone_counts":{"1":0},"command":null,"skipped":false}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}

func TestSkippedAndErrorAck(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"skipped", NewSkippedResponse(), `{"status":"skipped","skipped":true,"detections":[],"command":null}`},
		{"error", NewErrorAck(ErrorMalformedInput, "bad base64"), `{"status":"error","error":"malformed_input","message":"bad base64"}`},
		{"force", NewForceCommand(2), `{"type":"FORCE_COMMAND","val":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestSensorEvent_PayloadString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"topic":"iot/sensor/noise","payload":"loud"}`, "loud"},
		{`{"topic":"iot/sensor/noise","payload":{"db":92}}`, `{"db":92}`},
		{`{"topic":"iot/sensor/noise","payload":92}`, "92"},
	}

	for _, tt := range tests {
		var ev SensorEvent
		if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.raw, err)
		}
		if got := ev.PayloadString(); got != tt.want {
			t.Errorf("PayloadString() = %q, want %q", got, tt.want)
		}
	}
}
