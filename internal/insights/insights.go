// Package insights stores analyst-curated findings for later reporting.
package insights

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the display format of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04 UTC"

// MaxSampleRows caps the sample row count recorded with an insight.
const MaxSampleRows = 10

var ErrEmptyQuestion = errors.New("insight question is required")

type Record struct {
	ID         string    `json:"id,omitempty"`
	CreatedAt  time.Time `json:"-"`
	Timestamp  string    `json:"timestamp"`
	Question   string    `json:"question"`
	Summary    string    `json:"summary"`
	SQL        string    `json:"sql"`
	SampleRows int       `json:"sample_rows"`
}

// Journal is an append-only list of records. Clear is the only removal.
type Journal interface {
	Add(ctx context.Context, record Record) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context) error
}

// NewRecord builds a record stamped with now. rowCount is the size of the
// result the summary was taken from.
func NewRecord(question, summary, sql string, rowCount int, now time.Time) Record {
	samples := rowCount
	if samples > MaxSampleRows {
		samples = MaxSampleRows
	}
	if samples < 0 {
		samples = 0
	}
	now = now.UTC()
	return Record{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		Timestamp:  now.Format(TimestampLayout),
		Question:   question,
		Summary:    summary,
		SQL:        sql,
		SampleRows: samples,
	}
}

// Normalize fills ID and timestamps missing from a caller supplied record.
func Normalize(record Record, now time.Time) (Record, error) {
	if strings.TrimSpace(record.Question) == "" {
		return Record{}, ErrEmptyQuestion
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SampleRows < 0 {
		record.SampleRows = 0
	}
	if record.SampleRows > MaxSampleRows {
		record.SampleRows = MaxSampleRows
	}
	if record.CreatedAt.IsZero() {
		if parsed, err := time.Parse(TimestampLayout, record.Timestamp); err == nil {
			record.CreatedAt = parsed
		} else {
			record.CreatedAt = now
		}
	}
	record.CreatedAt = record.CreatedAt.UTC()
	if record.Timestamp == "" {
		record.Timestamp = record.CreatedAt.Format(TimestampLayout)
	}
	return record, nil
}

// Publication is one report uploaded to the object store.
type Publication struct {
	ObjectKey    string    `json:"object_key"`
	URL          string    `json:"url,omitempty"`
	InsightCount int       `json:"insight_count"`
	SizeBytes    int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

// PublicationLog remembers published reports. The postgres journal
// implements it.
type PublicationLog interface {
	RecordPublication(ctx context.Context, pub Publication) (int64, error)
}
