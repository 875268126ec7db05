// Package postgres keeps the insight journal and the report publication log
// in postgres. The tables come from internal/migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/migrations"
)

var ErrPendingMigrations = errors.New("journal schema has pending migrations")

const pingTimeout = 5 * time.Second

// OpenDB opens a pgx pool sized from cfg and pings it once.
func OpenDB(ctx context.Context, cfg config.JournalConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("journal dsn is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	applyPool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	return db, nil
}

func applyPool(db *sql.DB, cfg config.JournalConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Connect opens the journal and refuses to serve from a schema that is
// missing migrations.
func Connect(ctx context.Context, cfg config.JournalConfig) (*Journal, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	journal := NewJournal(db)
	if err := journal.CheckSchema(ctx, migrations.NewRunner()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// CheckSchema fails with ErrPendingMigrations naming the first migration not
// yet applied.
func (j *Journal) CheckSchema(ctx context.Context, runner *migrations.Runner) error {
	statuses, err := runner.Status(ctx, j.db)
	if err != nil {
		return fmt.Errorf("read journal migration status: %w", err)
	}
	for _, status := range statuses {
		if !status.Applied {
			return fmt.Errorf("%w: %06d %s", ErrPendingMigrations, status.Version, status.Name)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) HealthCheck(ctx context.Context) error {
	if err := j.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping journal db: %w", err)
	}
	return nil
}

func (j *Journal) Add(ctx context.Context, record insights.Record) (insights.Record, error) {
	record, err := insights.Normalize(record, j.now())
	if err != nil {
		return insights.Record{}, err
	}

	query := `
INSERT INTO insight (insight_id, created_at, question, summary, sql_text, sample_rows)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := j.db.ExecContext(ctx, query,
		record.ID,
		record.CreatedAt,
		record.Question,
		record.Summary,
		record.SQL,
		record.SampleRows,
	); err != nil {
		return insights.Record{}, fmt.Errorf("insert insight: %w", err)
	}
	return record, nil
}

func (j *Journal) List(ctx context.Context) ([]insights.Record, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT insight_id, created_at, question, summary, sql_text, sample_rows
FROM insight
ORDER BY created_at, insight_id`)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []insights.Record{}
	for rows.Next() {
		var record insights.Record
		if err := rows.Scan(
			&record.ID,
			&record.CreatedAt,
			&record.Question,
			&record.Summary,
			&record.SQL,
			&record.SampleRows,
		); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		record.CreatedAt = record.CreatedAt.UTC()
		record.Timestamp = record.CreatedAt.Format(insights.TimestampLayout)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return records, nil
}

func (j *Journal) Clear(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM insight`); err != nil {
		return fmt.Errorf("clear insights: %w", err)
	}
	return nil
}

func (j *Journal) RecordPublication(ctx context.Context, pub insights.Publication) (int64, error) {
	publishedAt := pub.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = j.now()
	}
	query := `
INSERT INTO report_publication (object_key, insight_count, size_bytes, etag, published_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING publication_id`
	var id int64
	if err := j.db.QueryRowContext(ctx, query,
		pub.ObjectKey,
		pub.InsightCount,
		pub.SizeBytes,
		pub.ETag,
		publishedAt.UTC(),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("record report publication: %w", err)
	}
	return id, nil
}

func (j *Journal) ListPublications(ctx context.Context, limit int) ([]insights.Publication, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT object_key, insight_count, size_bytes, etag, published_at
FROM report_publication
ORDER BY published_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list report publications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []insights.Publication
	for rows.Next() {
		var pub insights.Publication
		if err := rows.Scan(&pub.ObjectKey, &pub.InsightCount, &pub.SizeBytes, &pub.ETag, &pub.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan report publication: %w", err)
		}
		out = append(out, pub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report publications: %w", err)
	}
	return out, nil
}
