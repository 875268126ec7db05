package insights

import (
	"errors"
	"testing"
	"time"
)

func TestNewRecordCapsSampleRows(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 7, 31, 0, time.FixedZone("BRT", -3*3600))
	record := NewRecord("top categories", "summary", "SELECT 1", 42, now)

	if record.SampleRows != MaxSampleRows {
		t.Fatalf("SampleRows = %d, want %d", record.SampleRows, MaxSampleRows)
	}
	if record.Timestamp != "2024-03-09 17:07 UTC" {
		t.Fatalf("Timestamp = %q", record.Timestamp)
	}
	if record.ID == "" {
		t.Fatal("ID should be generated")
	}
	if got := NewRecord("q", "", "", 3, now).SampleRows; got != 3 {
		t.Fatalf("SampleRows = %d, want 3", got)
	}
}

func TestNormalizeFillsMissingFields(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)

	record, err := Normalize(Record{Question: "q", SampleRows: 99}, now)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if record.ID == "" || record.Timestamp != "2024-01-02 03:04 UTC" || record.SampleRows != MaxSampleRows {
		t.Fatalf("record = %+v", record)
	}

	record, err = Normalize(Record{Question: "q", Timestamp: "2023-12-31 23:59 UTC"}, now)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !record.CreatedAt.Equal(time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("CreatedAt = %v", record.CreatedAt)
	}

	if _, err := Normalize(Record{Question: "  "}, now); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Normalize() error = %v, want ErrEmptyQuestion", err)
	}
}
