package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"trafficserver/internal/config"
	"trafficserver/internal/dto"
	"trafficserver/internal/logger"
	"trafficserver/internal/model"
	"trafficserver/internal/repository"
)

// SnapshotsHandler returns a paginated list of snapshots from the database.
func SnapshotsHandler(repo repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &model.SnapshotFilter{
			Device: q.Get("device"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		snapshots, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snapshots)
		}

		writeJSON(w, http.StatusOK, dto.SnapshotsData{
			Snapshots:   snapshots,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// ViewSnapshotHandler serves a single image file specified via the "image" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		if image != filepath.Base(image) || image == "." || image == ".." {
			http.Error(w, "Invalid image name", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, image))
	}
}

// TelemetryHandler serves GET /api/telemetry?limit=: the most recent
// records from the document store.
func TelemetryHandler(repo repository.TelemetryRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		records, err := repo.Recent(limit)
		if err != nil {
			logger.Error("Error querying telemetry: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		total, err := repo.Count()
		if err != nil {
			logger.Error("Error counting telemetry: %v", err)
			total = len(records)
		}

		writeJSON(w, http.StatusOK, dto.TelemetryData{Records: records, Total: total}, logger)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
