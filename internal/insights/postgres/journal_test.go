package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/migrations"
)

func TestOpenDBRequiresDSN(t *testing.T) {
	if _, err := OpenDB(context.Background(), config.JournalConfig{DSN: "  "}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestCheckSchemaReportsPendingMigration(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS insightgpt_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM insightgpt_schema_migrations ORDER BY version ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))

	err := journal.CheckSchema(context.Background(), migrations.NewRunner())
	if !errors.Is(err, ErrPendingMigrations) {
		t.Fatalf("CheckSchema() error = %v, want ErrPendingMigrations", err)
	}
	if !strings.Contains(err.Error(), "000002") {
		t.Fatalf("CheckSchema() error = %v, want pending version named", err)
	}
}

func TestCheckSchemaAcceptsFullyMigratedJournal(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS insightgpt_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM insightgpt_schema_migrations ORDER BY version ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)).AddRow(int64(2)))

	if err := journal.CheckSchema(context.Background(), migrations.NewRunner()); err != nil {
		t.Fatalf("CheckSchema() error = %v", err)
	}
}

func TestAddInsertsNormalizedRecord(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	journal.now = func() time.Time { return now }

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO insight (insight_id, created_at, question, summary, sql_text, sample_rows)
VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs("id-1", now, "q", "s", "SELECT 1", insights.MaxSampleRows).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record, err := journal.Add(context.Background(), insights.Record{ID: "id-1", Question: "q", Summary: "s", SQL: "SELECT 1", SampleRows: 50})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if record.Timestamp != "2024-06-01 12:00 UTC" {
		t.Fatalf("Timestamp = %q", record.Timestamp)
	}
	assertSQLMock(t, mock)
}

func TestAddWrapsInsertError(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO insight`)).WillReturnError(boom)

	_, err := journal.Add(context.Background(), insights.Record{Question: "q"})
	if !errors.Is(err, boom) {
		t.Fatalf("Add() error = %v, want wrapped %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestListFormatsTimestamps(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)
	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("BRT", -3*3600))

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT insight_id, created_at, question, summary, sql_text, sample_rows
FROM insight
ORDER BY created_at, insight_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"insight_id", "created_at", "question", "summary", "sql_text", "sample_rows"}).
			AddRow("id-1", created, "q1", "s1", "SELECT 1", 3).
			AddRow("id-2", created.Add(time.Minute), "q2", "s2", "", 0))

	records, err := journal.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d", len(records))
	}
	if records[0].Timestamp != "2024-02-03 07:05 UTC" || records[0].SampleRows != 3 {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if records[1].Question != "q2" || records[1].SQL != "" {
		t.Fatalf("records[1] = %+v", records[1])
	}
	assertSQLMock(t, mock)
}

func TestListEmptyReturnsEmptySlice(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM insight`)).
		WillReturnRows(sqlmock.NewRows([]string{"insight_id", "created_at", "question", "summary", "sql_text", "sample_rows"}))

	records, err := NewJournal(db).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("List() = %#v, want empty non-nil slice", records)
	}
	assertSQLMock(t, mock)
}

func TestClearDeletesAllRows(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM insight`)).WillReturnResult(sqlmock.NewResult(0, 7))

	if err := NewJournal(db).Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordPublicationReturnsID(t *testing.T) {
	db, mock := newSQLMock(t)
	journal := NewJournal(db)
	published := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO report_publication (object_key, insight_count, size_bytes, etag, published_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING publication_id`)).
		WithArgs("reports/2024-06-02/olist.md", 2, int64(512), "etag-1", published).
		WillReturnRows(sqlmock.NewRows([]string{"publication_id"}).AddRow(int64(9)))

	id, err := journal.RecordPublication(context.Background(), insights.Publication{
		ObjectKey:    "reports/2024-06-02/olist.md",
		InsightCount: 2,
		SizeBytes:    512,
		ETag:         "etag-1",
		PublishedAt:  published,
	})
	if err != nil {
		t.Fatalf("RecordPublication() error = %v", err)
	}
	if id != 9 {
		t.Fatalf("id = %d, want 9", id)
	}
	assertSQLMock(t, mock)
}

func TestListPublicationsDefaultsLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	published := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM report_publication`)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"object_key", "insight_count", "size_bytes", "etag", "published_at"}).
			AddRow("reports/a.md", 1, int64(10), "", published))

	pubs, err := NewJournal(db).ListPublications(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPublications() error = %v", err)
	}
	if len(pubs) != 1 || pubs[0].ObjectKey != "reports/a.md" {
		t.Fatalf("ListPublications() = %+v", pubs)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
