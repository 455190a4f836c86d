package repository

import (
	"context"

	"trafficserver/internal/model"
)

// TelemetryRepository is the document store of telemetry records.
type TelemetryRepository interface {
	// Create operations
	Append(ctx context.Context, rec model.TelemetryRecord) error

	// Read operations
	Recent(limit int) ([]model.TelemetryRecord, error)
	Count() (int, error)
}

// SnapshotRepository defines the interface for captured still images.
type SnapshotRepository interface {
	// Create operations
	Insert(s *model.Snapshot) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Snapshot, error)
	GetAll(filter *model.SnapshotFilter) ([]model.Snapshot, error)
	GetTotalCount(filter *model.SnapshotFilter) (int, error)

	// Delete operations
	DeleteAll() error
}
