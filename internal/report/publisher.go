package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage"
)

var ErrNothingToPublish = errors.New("no insights saved")

type PublisherConfig struct {
	Title         string
	Author        string
	PresignExpiry time.Duration
}

// Published describes a report already in the object store.
type Published struct {
	Day         string    `json:"day"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"object_key"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url,omitempty"`
}

// Publisher compiles the journal into markdown and uploads it.
type Publisher struct {
	journal insights.Journal
	store   storage.ObjectStore
	log     insights.PublicationLog
	cfg     PublisherConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher wires a publisher. log may be nil.
func NewPublisher(journal insights.Journal, store storage.ObjectStore, log insights.PublicationLog, cfg PublisherConfig, logger *slog.Logger) (*Publisher, error) {
	if journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 24 * time.Hour
	}
	return &Publisher{journal: journal, store: store, log: log, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Compile renders the current journal without uploading it.
func (p *Publisher) Compile(ctx context.Context) (string, int, error) {
	records, err := p.journal.List(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("list insights: %w", err)
	}
	return InsightsToMarkdown(records, p.cfg.Title, p.cfg.Author), len(records), nil
}

// Publish uploads the compiled report under reports/<date>/<name>.md. An empty
// name is derived from the title.
func (p *Publisher) Publish(ctx context.Context, name string) (insights.Publication, error) {
	markdown, count, err := p.Compile(ctx)
	if err != nil {
		return insights.Publication{}, err
	}
	if count == 0 {
		return insights.Publication{}, ErrNothingToPublish
	}

	now := p.now().UTC()
	if strings.TrimSpace(name) == "" {
		name = storage.ReportName(p.cfg.Title, now)
	}
	key, err := storage.BuildReportKey(strings.TrimSpace(name), now)
	if err != nil {
		return insights.Publication{}, err
	}

	info, err := p.store.Put(ctx, key, strings.NewReader(markdown), int64(len(markdown)), storage.PutOptions{
		Metadata: map[string]string{"insight-count": strconv.Itoa(count)},
	})
	observability.ObserveReportPublished(err)
	if err != nil {
		return insights.Publication{}, fmt.Errorf("upload report: %w", err)
	}

	pub := insights.Publication{
		ObjectKey:    key,
		InsightCount: count,
		SizeBytes:    int64(len(markdown)),
		ETag:         info.ETag,
		PublishedAt:  now,
	}
	if presigner, ok := p.store.(storage.Presigner); ok {
		link, err := presigner.PresignGet(ctx, key, p.cfg.PresignExpiry)
		if err != nil {
			p.logger.Warn("presign report failed", slog.String("key", key), slog.Any("error", err))
		} else {
			pub.URL = link.String()
		}
	}
	if p.log != nil {
		if _, err := p.log.RecordPublication(ctx, pub); err != nil {
			p.logger.Warn("record report publication failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	observability.RequestLogger(ctx, p.logger).InfoContext(ctx, "report published",
		slog.String("key", key),
		slog.Int("insights", count),
		slog.Int64("bytes", pub.SizeBytes),
	)
	return pub, nil
}

// List returns published reports, newest first. Objects outside the
// reports/<day>/<name>.md layout are skipped.
func (p *Publisher) List(ctx context.Context) ([]Published, error) {
	objects, err := p.store.List(ctx, storage.ReportRoot)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	presigner, _ := p.store.(storage.Presigner)
	out := make([]Published, 0, len(objects))
	for _, obj := range objects {
		day, name, err := storage.SplitReportKey(obj.Key)
		if err != nil {
			continue
		}
		item := Published{
			Day:         day,
			Name:        name,
			ObjectKey:   obj.Key,
			SizeBytes:   obj.Size,
			ETag:        obj.ETag,
			PublishedAt: obj.LastModified.UTC(),
		}
		if presigner != nil {
			if link, err := presigner.PresignGet(ctx, obj.Key, p.cfg.PresignExpiry); err == nil {
				item.URL = link.String()
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Open returns the body of one published report. The caller closes it.
func (p *Publisher) Open(ctx context.Context, day, name string) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := storage.ReportKey(day, name)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	info, err := p.store.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	body, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	return body, info, nil
}
