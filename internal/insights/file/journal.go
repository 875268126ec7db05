// Package file keeps the insight journal in a single JSON array file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
)

type Journal struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	read   func(string) ([]byte, error)

	mu sync.Mutex
}

func New(path string, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{path: path, logger: logger, now: time.Now, read: os.ReadFile}, nil
}

func (j *Journal) Path() string { return j.path }

func (j *Journal) Add(_ context.Context, record insights.Record) (insights.Record, error) {
	record, err := insights.Normalize(record, j.now())
	if err != nil {
		return insights.Record{}, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.load()
	if err != nil {
		return insights.Record{}, err
	}
	records = append(records, record)
	if err := j.save(records); err != nil {
		return insights.Record{}, err
	}
	return record, nil
}

// List reads an unreadable journal as empty. Add refuses to write over it.
func (j *Journal) List(_ context.Context) ([]insights.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.load()
	if err != nil {
		j.logger.Warn("read insight journal failed", slog.String("path", j.path), slog.Any("error", err))
		return []insights.Record{}, nil
	}
	return records, nil
}

func (j *Journal) Clear(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.save([]insights.Record{})
}

// load treats a missing or corrupt file as an empty journal and reports any
// other read failure.
func (j *Journal) load() ([]insights.Record, error) {
	payload, err := j.read(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []insights.Record{}, nil
		}
		return nil, fmt.Errorf("read insight journal: %w", err)
	}
	var records []insights.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		j.logger.Warn("insight journal is corrupt, starting empty", slog.String("path", j.path), slog.Any("error", err))
		return []insights.Record{}, nil
	}
	for i := range records {
		if parsed, err := time.Parse(insights.TimestampLayout, records[i].Timestamp); err == nil {
			records[i].CreatedAt = parsed
		}
	}
	return records, nil
}

func (j *Journal) save(records []insights.Record) error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".insights-*.json")
	if err != nil {
		return fmt.Errorf("create journal temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close journal temp file: %w", err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	return nil
}
