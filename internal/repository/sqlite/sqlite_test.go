package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trafficserver/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_Connection(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo := NewTelemetryRepository(db)
	if err := repo.Append(context.Background(), model.TelemetryRecord{Topic: "t", Payload: "1", LocalTimestamp: time.Now()}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	db.Close()

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	count, err := NewTelemetryRepository(db).Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 record after reopen, got %d", count)
	}
}

func TestTelemetryRepository_AppendAndRecent(t *testing.T) {
	repo := NewTelemetryRepository(newTestDB(t))
	ctx := context.Background()
	local := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		rec := model.TelemetryRecord{
			Topic:          "iot/backend/traffic",
			Payload:        fmt.Sprint(i),
			LocalTimestamp: local.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	records, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Payload != "3" || records[1].Payload != "2" {
		t.Errorf("Expected newest first, got %q then %q", records[0].Payload, records[1].Payload)
	}
	if records[0].ServerTimestamp.IsZero() {
		t.Error("Expected server timestamp to be assigned")
	}
	if !records[0].LocalTimestamp.Equal(local.Add(3 * time.Second)) {
		t.Errorf("Unexpected local timestamp %v", records[0].LocalTimestamp)
	}
}

func TestTelemetryRepository_AppendHonoursContext(t *testing.T) {
	repo := NewTelemetryRepository(newTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Append(ctx, model.TelemetryRecord{Topic: "t", Payload: "p"}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestTelemetryRepository_ConcurrentAppends(t *testing.T) {
	repo := NewTelemetryRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rec := model.TelemetryRecord{Topic: "iot/sensor/noise", Payload: fmt.Sprint(idx), LocalTimestamp: time.Now()}
			if err := repo.Append(context.Background(), rec); err != nil {
				t.Errorf("Concurrent append %d failed: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 records, got %d", count)
	}
}

func insertSnapshots(t *testing.T, repo *SnapshotRepository, device string, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := &model.Snapshot{
			Filename:  fmt.Sprintf("%s_%d.jpg", device, i),
			Device:    device,
			Reason:    "noise",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			FilePath:  "/images/" + device,
			FileSize:  100,
		}
		if _, err := repo.Insert(s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
}

func TestSnapshotRepository_FilterAndPaginate(t *testing.T) {
	repo := NewSnapshotRepository(newTestDB(t))
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	insertSnapshots(t, repo, "cam-1", 5, base)
	insertSnapshots(t, repo, "cam-2", 2, base)

	total, err := repo.GetTotalCount(&model.SnapshotFilter{Device: "cam-1"})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected 5 cam-1 snapshots, got %d", total)
	}

	page, err := repo.GetAll(&model.SnapshotFilter{Device: "cam-1", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 snapshots on page, got %d", len(page))
	}
	if page[0].Filename != "cam-1_2.jpg" || page[1].Filename != "cam-1_1.jpg" {
		t.Errorf("Unexpected page: %s, %s", page[0].Filename, page[1].Filename)
	}

	all, err := repo.GetAll(&model.SnapshotFilter{})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 7 {
		t.Errorf("Expected 7 snapshots, got %d", len(all))
	}
}

func TestSnapshotRepository_GetByFilename(t *testing.T) {
	repo := NewSnapshotRepository(newTestDB(t))
	insertSnapshots(t, repo, "cam-1", 1, time.Now())

	s, err := repo.GetByFilename("cam-1_0.jpg")
	if err != nil {
		t.Fatalf("GetByFilename failed: %v", err)
	}
	if s == nil || s.Device != "cam-1" || s.Reason != "noise" {
		t.Errorf("Unexpected snapshot: %+v", s)
	}

	missing, err := repo.GetByFilename("nope.jpg")
	if err != nil {
		t.Fatalf("GetByFilename failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing snapshot, got %+v", missing)
	}
}

func TestSnapshotRepository_DuplicateFilename(t *testing.T) {
	repo := NewSnapshotRepository(newTestDB(t))
	insertSnapshots(t, repo, "cam-1", 1, time.Now())

	_, err := repo.Insert(&model.Snapshot{Filename: "cam-1_0.jpg", Device: "cam-1", Reason: "noise", Timestamp: time.Now()})
	if err == nil {
		t.Error("Expected error for duplicate filename")
	}
}

func TestSnapshotRepository_DeleteAll(t *testing.T) {
	repo := NewSnapshotRepository(newTestDB(t))
	insertSnapshots(t, repo, "cam-1", 3, time.Now())

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	total, err := repo.GetTotalCount(nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Expected 0 snapshots, got %d", total)
	}
}
