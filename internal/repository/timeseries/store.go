// Package timeseries is an append-only telemetry log. Each topic is kept in
// its own file of back-to-back msgpack entries, keyed by a push id.
package timeseries

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"trafficserver/internal/model"
)

const fileExt = ".msgpack"

// Entry is one stored telemetry record.
type Entry struct {
	Key     string `msgpack:"key"`
	Topic   string `msgpack:"topic"`
	Payload string `msgpack:"payload"`
	TS      int64  `msgpack:"ts"`
	TSLocal int64  `msgpack:"ts_local"`
}

// Record converts the entry back to a telemetry record.
func (e Entry) Record() model.TelemetryRecord {
	return model.TelemetryRecord{
		Topic:           e.Topic,
		Payload:         e.Payload,
		ServerTimestamp: time.UnixMilli(e.TS),
		LocalTimestamp:  time.UnixMilli(e.TSLocal),
	}
}

// Store appends entries under a directory.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// New creates the store directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create time-series directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// PathFor maps a topic to its log name.
func PathFor(topic string) string {
	p := strings.ReplaceAll(topic, "/", "_")
	if p == "" || p == "." || p == ".." {
		p = "_"
	}
	return p
}

// Name identifies the sink in log lines.
func (s *Store) Name() string {
	return "timeseries"
}

// Append writes rec to the log of its topic under a fresh push key.
func (s *Store) Append(ctx context.Context, rec model.TelemetryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := Entry{
		Key:     uuid.NewString(),
		Topic:   rec.Topic,
		Payload: rec.Payload,
		TS:      s.now().UnixMilli(),
		TSLocal: rec.LocalTimestamp.UnixMilli(),
	}
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.file(PathFor(rec.Topic)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// Read returns the last limit entries of path in append order, or all of
// them when limit <= 0. A truncated trailing entry is ignored.
func (s *Store) Read(path string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.file(PathFor(path)))
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	entries := make([]Entry, 0)
	dec := msgpack.NewDecoder(bufio.NewReader(f))
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		entries = append(entries, e)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Paths lists the stored logs.
func (s *Store) Paths() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read time-series directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileExt) {
			continue
		}
		paths = append(paths, strings.TrimSuffix(f.Name(), fileExt))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) file(path string) string {
	return filepath.Join(s.dir, path+fileExt)
}
