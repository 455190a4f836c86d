package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"trafficserver/internal/dto"
	"trafficserver/internal/logger"
	"trafficserver/internal/service/dispatch"
)

// TrafficCommandHandler handles POST /traffic/{cmd}: a manual green-light
// override for one zone.
func TrafficCommandHandler(dispatcher *dispatch.Dispatcher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.PathValue("cmd")

		cmd, delivery, err := dispatcher.Override(raw)
		switch {
		case errors.Is(err, dispatch.ErrInvalidZone):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, dispatch.ErrUnavailable):
			logger.Warning("Override %s not delivered: %v", raw, err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			logger.Error("Override %s failed: %v", raw, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusOK, dto.OverrideResponse{
			Status:   "sent",
			Cmd:      cmd.Zone.String(),
			Channels: delivery.Channels,
			Broker:   delivery.Broker,
		}, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail}, nil)
}
