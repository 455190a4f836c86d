package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trafficserver/internal/logger"
	"trafficserver/internal/model"
	"trafficserver/internal/repository"
)

const snapshotTimeFormat = "2006-01-02_15-04-05.000"

type pendingSnapshot struct {
	frame  model.Frame
	reason string
	at     time.Time
	seq    uint64
}

// SnapshotService buffers still images in memory and periodically flushes
// them to disk.
type SnapshotService struct {
	imagesDir   string
	limit       int
	pending     []pendingSnapshot
	bufferCount map[string]int
	seq         uint64
	mu          sync.Mutex
	logger      *logger.Logger
	repo        repository.SnapshotRepository
	now         func() time.Time
}

// NewSnapshotService creates a SnapshotService writing into imagesDir. At
// most limit snapshots per device are held between flushes. repo may be nil.
func NewSnapshotService(imagesDir string, limit int, repo repository.SnapshotRepository, logger *logger.Logger) *SnapshotService {
	return &SnapshotService{
		imagesDir:   imagesDir,
		limit:       limit,
		bufferCount: make(map[string]int),
		logger:      logger,
		repo:        repo,
		now:         time.Now,
	}
}

// Capture buffers frame for the next flush. It reports false when the
// device's buffer is already full or the frame is empty.
func (s *SnapshotService) Capture(frame model.Frame, reason string) bool {
	if len(frame.Data) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[frame.Device] >= s.limit {
		return false
	}
	s.seq++
	s.pending = append(s.pending, pendingSnapshot{frame: frame, reason: reason, at: s.now(), seq: s.seq})
	s.bufferCount[frame.Device]++
	s.logger.Info("Snapshot buffered for device %s (%s): %d/%d", frame.Device, reason, s.bufferCount[frame.Device], s.limit)
	return true
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *SnapshotService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush writes the buffered snapshots to disk, records them in the
// repository and resets the per-device counters. It returns the number of
// files written.
func (s *SnapshotService) Flush() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	saved := 0
	for _, p := range pending {
		filename := fmt.Sprintf("%s_%s_%s_%d.jpg", p.at.Format(snapshotTimeFormat), sanitize(p.frame.Device), sanitize(p.reason), p.seq)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, p.frame.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}
		saved++

		if s.repo == nil {
			continue
		}
		snap := &model.Snapshot{
			Filename:  filename,
			Device:    p.frame.Device,
			Reason:    p.reason,
			Timestamp: p.at,
			FilePath:  fullpath,
			FileSize:  int64(len(p.frame.Data)),
		}
		if _, err := s.repo.Insert(snap); err != nil {
			s.logger.Error("Error saving snapshot to database %s: %v", filename, err)
		}
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}

// sanitize keeps a file name component to [A-Za-z0-9._-].
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, s)
}
