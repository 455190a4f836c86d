package sqlite

import (
	"context"
	"fmt"

	"trafficserver/internal/model"
)

// TelemetryRepository implements repository.TelemetryRepository for SQLite.
// It is the document-store sink of the telemetry recorder.
type TelemetryRepository struct {
	db *DB
}

// NewTelemetryRepository creates a new SQLite telemetry repository.
func NewTelemetryRepository(db *DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// Name identifies the sink in log lines.
func (r *TelemetryRepository) Name() string {
	return "sqlite"
}

// Append inserts a record. The server timestamp is assigned by the database.
func (r *TelemetryRepository) Append(ctx context.Context, rec model.TelemetryRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO telemetry (topic, payload, ts_local)
		VALUES (?, ?, ?)
	`, rec.Topic, rec.Payload, rec.LocalTimestamp)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *TelemetryRepository) Recent(limit int) ([]model.TelemetryRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT topic, payload, ts, ts_local FROM telemetry ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	records := make([]model.TelemetryRecord, 0)
	for rows.Next() {
		var rec model.TelemetryRecord
		if err := rows.Scan(&rec.Topic, &rec.Payload, &rec.ServerTimestamp, &rec.LocalTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (r *TelemetryRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM telemetry`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count telemetry: %w", err)
	}
	return count, nil
}
