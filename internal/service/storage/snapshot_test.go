package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trafficserver/internal/logger"
	"trafficserver/internal/model"
	"trafficserver/internal/repository"
)

// fakeSnapshotRepo records inserts.
type fakeSnapshotRepo struct {
	mu       sync.Mutex
	inserted []model.Snapshot
	failWith error
}

func (r *fakeSnapshotRepo) Insert(s *model.Snapshot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	r.inserted = append(r.inserted, *s)
	return int64(len(r.inserted)), nil
}

func (r *fakeSnapshotRepo) GetByFilename(string) (*model.Snapshot, error) { return nil, nil }
func (r *fakeSnapshotRepo) GetAll(*model.SnapshotFilter) ([]model.Snapshot, error) {
	return nil, nil
}
func (r *fakeSnapshotRepo) GetTotalCount(*model.SnapshotFilter) (int, error) { return 0, nil }
func (r *fakeSnapshotRepo) DeleteAll() error                                  { return nil }

func newTestSnapshotService(t *testing.T, limit int, repo *fakeSnapshotRepo) (*SnapshotService, string) {
	t.Helper()
	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	dir := filepath.Join(t.TempDir(), "images")
	var snapshots repository.SnapshotRepository
	if repo != nil {
		snapshots = repo
	}
	s := NewSnapshotService(dir, limit, snapshots, l)
	s.now = func() time.Time { return time.Date(2026, 4, 2, 17, 30, 5, 0, time.UTC) }
	return s, dir
}

func TestSnapshotService_CaptureAndFlush(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	s, dir := newTestSnapshotService(t, 5, repo)

	if !s.Capture(model.Frame{Device: "cam-1", Data: []byte("jpeg")}, "noise") {
		t.Fatal("Expected capture to be buffered")
	}
	if n := s.Flush(); n != 1 {
		t.Fatalf("Expected 1 snapshot flushed, got %d", n)
	}

	want := "2026-04-02_17-30-05.000_cam-1_noise_1.jpg"
	data, err := os.ReadFile(filepath.Join(dir, want))
	if err != nil {
		t.Fatalf("Expected snapshot file %s: %v", want, err)
	}
	if string(data) != "jpeg" {
		t.Errorf("Unexpected file content %q", data)
	}

	if len(repo.inserted) != 1 {
		t.Fatalf("Expected 1 repository insert, got %d", len(repo.inserted))
	}
	got := repo.inserted[0]
	if got.Filename != want || got.Device != "cam-1" || got.Reason != "noise" || got.FileSize != 4 {
		t.Errorf("Unexpected snapshot record %+v", got)
	}
}

func TestSnapshotService_LimitPerDevice(t *testing.T) {
	s, _ := newTestSnapshotService(t, 2, &fakeSnapshotRepo{})
	frame := model.Frame{Device: "cam-1", Data: []byte("x")}

	if !s.Capture(frame, "a") || !s.Capture(frame, "b") {
		t.Fatal("Expected first two captures to be buffered")
	}
	if s.Capture(frame, "c") {
		t.Error("Expected third capture to be rejected")
	}
	if !s.Capture(model.Frame{Device: "cam-2", Data: []byte("y")}, "a") {
		t.Error("Expected another device to have its own buffer")
	}

	s.Flush()
	if !s.Capture(frame, "d") {
		t.Error("Expected counters to reset after flush")
	}
}

func TestSnapshotService_EmptyFrameRejected(t *testing.T) {
	s, _ := newTestSnapshotService(t, 2, nil)
	if s.Capture(model.Frame{Device: "cam-1"}, "noise") {
		t.Error("Expected empty frame to be rejected")
	}
	if n := s.Flush(); n != 0 {
		t.Errorf("Expected nothing flushed, got %d", n)
	}
}

func TestSnapshotService_RepositoryFailureKeepsFile(t *testing.T) {
	repo := &fakeSnapshotRepo{failWith: errors.New("disk full")}
	s, dir := newTestSnapshotService(t, 1, repo)

	s.Capture(model.Frame{Device: "cam/1", Data: []byte("x")}, "noise")
	if n := s.Flush(); n != 1 {
		t.Fatalf("Expected 1 file written, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-04-02_17-30-05.000_cam-1_noise_1.jpg")); err != nil {
		t.Errorf("Expected sanitized snapshot file: %v", err)
	}
}

func TestSnapshotService_RunFlushesOnShutdown(t *testing.T) {
	s, dir := newTestSnapshotService(t, 1, nil)
	s.Capture(model.Frame{Device: "cam-1", Data: []byte("x")}, "noise")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read image dir: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected 1 file after shutdown flush, got %d", len(files))
	}
}

func TestSnapshotService_SameInstantCapturesKeepDistinctFiles(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	s, dir := newTestSnapshotService(t, 5, repo)
	frame := model.Frame{Device: "cam-1", Data: []byte("x")}

	s.Capture(frame, "sound")
	s.Capture(frame, "sound")
	if n := s.Flush(); n != 2 {
		t.Fatalf("Expected 2 files written, got %d", n)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read image dir: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 distinct files, got %d", len(files))
	}
	if len(repo.inserted) != 2 || repo.inserted[0].Filename == repo.inserted[1].Filename {
		t.Errorf("Expected 2 inserts with distinct filenames, got %+v", repo.inserted)
	}
}
