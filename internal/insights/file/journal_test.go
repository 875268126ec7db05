package file

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "insights.json")
	journal, err := New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	journal.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return journal
}

func TestAddListClear(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	records, err := journal.List(ctx)
	if err != nil || len(records) != 0 {
		t.Fatalf("List() on missing file = %v, %v", records, err)
	}

	first, err := journal.Add(ctx, insights.Record{Question: "q1", Summary: "s1", SQL: "SELECT 1", SampleRows: 4})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if first.Timestamp != "2024-05-01 09:30 UTC" || first.ID == "" {
		t.Fatalf("Add() = %+v", first)
	}
	if _, err := journal.Add(ctx, insights.Record{Question: "q2"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	records, err = journal.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 || records[0].Question != "q1" || records[1].Question != "q2" {
		t.Fatalf("List() = %+v", records)
	}
	if records[0].SQL != "SELECT 1" || records[0].SampleRows != 4 {
		t.Fatalf("records[0] = %+v", records[0])
	}

	if err := journal.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	records, _ = journal.List(ctx)
	if len(records) != 0 {
		t.Fatalf("List() after Clear = %+v", records)
	}
	payload, err := os.ReadFile(journal.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(payload) != "[]" {
		t.Fatalf("cleared journal = %q, want []", payload)
	}
}

func TestWritesOriginalFieldNames(t *testing.T) {
	journal := newTestJournal(t)
	if _, err := journal.Add(context.Background(), insights.Record{Question: "q", Summary: "s", SQL: "SELECT 1", SampleRows: 2}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	payload, err := os.ReadFile(journal.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"timestamp", "question", "summary", "sql", "sample_rows"} {
		if _, ok := raw[0][key]; !ok {
			t.Fatalf("journal entry missing %q: %s", key, payload)
		}
	}
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	journal := newTestJournal(t)
	if err := os.MkdirAll(filepath.Dir(journal.Path()), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(journal.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	records, err := journal.List(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("List() = %v, %v", records, err)
	}

	if _, err := journal.Add(context.Background(), insights.Record{Question: "fresh"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	records, _ = journal.List(context.Background())
	if len(records) != 1 || records[0].Question != "fresh" {
		t.Fatalf("List() = %+v", records)
	}
}

func TestAddKeepsJournalWhenReadFails(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()
	if _, err := journal.Add(ctx, insights.Record{Question: "kept"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	before, err := os.ReadFile(journal.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	journal.read = func(string) ([]byte, error) { return nil, syscall.EIO }
	if _, err := journal.Add(ctx, insights.Record{Question: "lost"}); !errors.Is(err, syscall.EIO) {
		t.Fatalf("Add() error = %v, want EIO", err)
	}
	records, err := journal.List(ctx)
	if err != nil || len(records) != 0 {
		t.Fatalf("List() = %v, %v", records, err)
	}

	after, err := os.ReadFile(journal.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(after) != string(before) {
		t.Fatalf("journal rewritten after failed read:\n%s", after)
	}
}

func TestAddRejectsEmptyQuestion(t *testing.T) {
	journal := newTestJournal(t)
	if _, err := journal.Add(context.Background(), insights.Record{}); err == nil {
		t.Fatal("Add() expected error for empty question")
	}
}
