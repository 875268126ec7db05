package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage"
)

func TestPublishUploadsCompiledReport(t *testing.T) {
	journal := &fakeJournal{records: []insights.Record{
		{Timestamp: "2024-01-01 10:00 UTC", Question: "q1", Summary: "s1", SQL: "SELECT 1"},
	}}
	store := &fakeStore{}
	log := &fakePublicationLog{}
	publisher := newTestPublisher(t, journal, store, log)

	pub, err := publisher.Publish(context.Background(), "")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if pub.ObjectKey != "reports/2024-03-04/olist-insights-report-050607.md" {
		t.Fatalf("ObjectKey = %q", pub.ObjectKey)
	}
	if store.key != pub.ObjectKey {
		t.Fatalf("uploaded key = %q", store.key)
	}
	if !strings.HasPrefix(store.body, "# Olist Insights Report\n\n_Author: InsightGPT_") {
		t.Fatalf("uploaded body = %q", store.body)
	}
	if store.opts.Metadata["insight-count"] != "1" {
		t.Fatalf("metadata = %#v", store.opts.Metadata)
	}
	if pub.URL != "https://minio.local/"+pub.ObjectKey {
		t.Fatalf("URL = %q", pub.URL)
	}
	if pub.SizeBytes != int64(len(store.body)) || pub.ETag != "etag-9" {
		t.Fatalf("publication = %+v", pub)
	}
	if len(log.recorded) != 1 || log.recorded[0].ObjectKey != pub.ObjectKey {
		t.Fatalf("recorded = %+v", log.recorded)
	}
}

func TestPublishUsesExplicitName(t *testing.T) {
	journal := &fakeJournal{records: []insights.Record{{Question: "q"}}}
	store := &fakeStore{}
	publisher := newTestPublisher(t, journal, store, nil)

	pub, err := publisher.Publish(context.Background(), "weekly")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if pub.ObjectKey != "reports/2024-03-04/weekly.md" {
		t.Fatalf("ObjectKey = %q", pub.ObjectKey)
	}

	if _, err := publisher.Publish(context.Background(), "../etc"); err == nil {
		t.Fatal("expected invalid report name error")
	}
}

func TestPublishRefusesEmptyJournal(t *testing.T) {
	store := &fakeStore{}
	publisher := newTestPublisher(t, &fakeJournal{}, store, nil)

	if _, err := publisher.Publish(context.Background(), ""); !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("Publish() error = %v, want ErrNothingToPublish", err)
	}
	if store.key != "" {
		t.Fatalf("unexpected upload to %q", store.key)
	}
}

func TestPublishSurvivesPublicationLogFailure(t *testing.T) {
	journal := &fakeJournal{records: []insights.Record{{Question: "q"}}}
	publisher := newTestPublisher(t, journal, &fakeStore{}, &fakePublicationLog{err: errors.New("db down")})
	if _, err := publisher.Publish(context.Background(), "x"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublishPropagatesUploadError(t *testing.T) {
	journal := &fakeJournal{records: []insights.Record{{Question: "q"}}}
	boom := errors.New("bucket gone")
	publisher := newTestPublisher(t, journal, &fakeStore{putErr: boom}, nil)
	if _, err := publisher.Publish(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v, want %v", err, boom)
	}
}

func TestListSkipsForeignKeysAndPresigns(t *testing.T) {
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	store := &fakeStore{listed: []storage.ObjectInfo{
		{Key: "reports/2024-03-04/weekly.md", Size: 42, ETag: "e1", LastModified: at},
		{Key: "reports/scratch.txt", Size: 1, LastModified: at},
	}}
	publisher := newTestPublisher(t, &fakeJournal{}, store, nil)

	reports, err := publisher.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if store.listPrefix != storage.ReportRoot {
		t.Fatalf("list prefix = %q", store.listPrefix)
	}
	if len(reports) != 1 {
		t.Fatalf("List() = %+v", reports)
	}
	got := reports[0]
	if got.Day != "2024-03-04" || got.Name != "weekly.md" || got.SizeBytes != 42 || !got.PublishedAt.Equal(at) {
		t.Fatalf("report = %+v", got)
	}
	if got.URL != "https://minio.local/reports/2024-03-04/weekly.md" {
		t.Fatalf("URL = %q", got.URL)
	}
}

func TestOpenValidatesAndReadsReport(t *testing.T) {
	store := &fakeStore{body: "# Weekly"}
	publisher := newTestPublisher(t, &fakeJournal{}, store, nil)

	body, info, err := publisher.Open(context.Background(), "2024-03-04", "weekly.md")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer body.Close()
	payload, _ := io.ReadAll(body)
	if string(payload) != "# Weekly" || info.Key != "reports/2024-03-04/weekly.md" {
		t.Fatalf("Open() = %q, %+v", payload, info)
	}

	if _, _, err := publisher.Open(context.Background(), "yesterday", "weekly.md"); !errors.Is(err, storage.ErrInvalidReportKey) {
		t.Fatalf("Open(bad day) error = %v", err)
	}

	store.statErr = storage.ErrObjectNotFound
	if _, _, err := publisher.Open(context.Background(), "2024-03-04", "gone.md"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Open(missing) error = %v", err)
	}
}

func newTestPublisher(t *testing.T, journal insights.Journal, store storage.ObjectStore, log insights.PublicationLog) *Publisher {
	t.Helper()
	publisher, err := NewPublisher(journal, store, log, PublisherConfig{
		Title:  "Olist Insights Report",
		Author: "InsightGPT",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	publisher.now = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }
	return publisher
}

type fakeJournal struct {
	records []insights.Record
}

func (f *fakeJournal) Add(_ context.Context, record insights.Record) (insights.Record, error) {
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeJournal) List(context.Context) ([]insights.Record, error) {
	return f.records, nil
}

func (f *fakeJournal) Clear(context.Context) error {
	f.records = nil
	return nil
}

type fakeStore struct {
	key        string
	body       string
	opts       storage.PutOptions
	putErr     error
	statErr    error
	listed     []storage.ObjectInfo
	listPrefix string
}

func (f *fakeStore) Put(_ context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.key, f.body, f.opts = key, string(payload), opts
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-9"}, nil
}

func (f *fakeStore) Get(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(f.body))}, nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.listPrefix = prefix
	return f.listed, nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (*url.URL, error) {
	return &url.URL{Scheme: "https", Host: "minio.local", Path: "/" + key}, nil
}

type fakePublicationLog struct {
	recorded []insights.Publication
	err      error
}

func (f *fakePublicationLog) RecordPublication(_ context.Context, pub insights.Publication) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.recorded = append(f.recorded, pub)
	return int64(len(f.recorded)), nil
}
