package sqlite

import (
	"database/sql"
	"fmt"

	"trafficserver/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(s *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (filename, device, reason, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Filename, s.Device, s.Reason, s.Timestamp, s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a snapshot by its filename. It returns nil when
// no such snapshot exists.
func (r *SnapshotRepository) GetByFilename(filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s model.Snapshot
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, device, reason, timestamp, filepath, filesize
		FROM snapshots WHERE filename = ?
	`, filename).Scan(&s.ID, &s.Filename, &s.Device, &s.Reason, &s.Timestamp, &s.FilePath, &s.FileSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

func whereDevice(filter *model.SnapshotFilter) (string, []interface{}) {
	if filter == nil || filter.Device == "" {
		return "", nil
	}
	return " WHERE device = ?", []interface{}{filter.Device}
}

// GetAll retrieves snapshots newest first, filtered and paginated.
func (r *SnapshotRepository) GetAll(filter *model.SnapshotFilter) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereDevice(filter)
	query := `SELECT id, filename, device, reason, timestamp, filepath, filesize FROM snapshots` + where
	query += " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]model.Snapshot, 0)
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.Filename, &s.Device, &s.Reason, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetTotalCount returns the number of snapshots matching the filter,
// ignoring pagination.
func (r *SnapshotRepository) GetTotalCount(filter *model.SnapshotFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereDevice(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// DeleteAll removes all snapshot records.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
