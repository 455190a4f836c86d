package handler

import (
	"net/http"
	"time"

	"trafficserver/internal/config"
	"trafficserver/internal/dto"
	"trafficserver/internal/logger"
	"trafficserver/internal/service/broker"
	"trafficserver/internal/service/storage"
	hub "trafficserver/internal/service/websocket"
)

// StatusHandler serves GET /api/status.
func StatusHandler(cfg *config.Config, devices, viewers *hub.HubService, frames *storage.FrameCache,
	publisher broker.Publisher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := cfg.Policy
		status := dto.StatusResponse{
			Devices:       devices.Channels(),
			Viewers:       viewers.GetClientCount(),
			CachedFrames:  frames.Devices(),
			BrokerEnabled: publisher != nil,
			Decision: dto.DecisionConfig{
				MinInferenceInterval: p.MinInferenceInterval.String(),
				MinPublishDelay:      p.MinPublishDelay.String(),
				VehicleLabels:        p.VehicleLabels,
				ZoneCount:            p.ZoneCount,
			},
			Time: time.Now(),
		}
		if publisher != nil {
			status.BrokerConnected = publisher.IsConnected()
		}

		writeJSON(w, http.StatusOK, status, logger)
	}
}

// FrameHandler serves GET /api/frame?device=<id>: the latest cached frame.
func FrameHandler(frames *storage.FrameCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device := r.URL.Query().Get("device")
		if device == "" {
			http.Error(w, "Device parameter is required", http.StatusBadRequest)
			return
		}

		frame, ok := frames.Get(device)
		if !ok {
			http.Error(w, "No frame for device", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Last-Modified", frame.ReceivedAt.UTC().Format(http.TimeFormat))
		w.Write(frame.Data)
	}
}
