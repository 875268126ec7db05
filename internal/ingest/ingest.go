// Package ingest loads the processed Olist parquet files into the DuckDB
// analytical store.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query/duckdb"
)

// Table is one dataset table and the column it is physically ordered by.
type Table struct {
	Name      string
	ClusterBy string
}

func (t Table) File() string { return t.Name + ".parquet" }

var Tables = []Table{
	{Name: "customers"},
	{Name: "geolocation"},
	{Name: "items", ClusterBy: "order_id"},
	{Name: "payments", ClusterBy: "order_id"},
	{Name: "reviews", ClusterBy: "review_creation_date"},
	{Name: "orders", ClusterBy: "order_purchase_timestamp"},
	{Name: "products"},
	{Name: "sellers"},
	{Name: "product_category_translation"},
}

type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	return "missing required parquet files:\n" + strings.Join(e.Paths, "\n")
}

type Source struct {
	Table Table
	Path  string
	Rows  int64
}

// Discover resolves every table to a parquet file under dir. All missing files
// are reported in one *MissingFilesError.
func Discover(dir string, tables []Table) ([]Source, error) {
	if len(tables) == 0 {
		tables = Tables
	}
	var missing []string
	sources := make([]Source, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(dir, table.File())
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, path)
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		sources = append(sources, Source{Table: table, Path: path})
	}
	if len(missing) > 0 {
		return nil, &MissingFilesError{Paths: missing}
	}

	for i := range sources {
		rows, err := parquetRowCount(sources[i].Path)
		if err != nil {
			return nil, err
		}
		sources[i].Rows = rows
	}
	return sources, nil
}

func parquetRowCount(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	file, err := parquet.OpenFile(f, info.Size(), parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true))
	if err != nil {
		return 0, fmt.Errorf("read parquet footer %s: %w", path, err)
	}
	return file.NumRows(), nil
}

type TableSummary struct {
	Name string
	Rows int64
}

type Summary struct {
	Tables   []TableSummary
	Duration time.Duration
}

type Loader struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLoader(db *sql.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}
}

// Load replaces each table with the contents of its parquet file and then
// rewrites clustered tables in key order.
func (l *Loader) Load(ctx context.Context, sources []Source) (Summary, error) {
	started := time.Now()
	summary := Summary{Tables: make([]TableSummary, 0, len(sources))}

	for _, source := range sources {
		stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
			duckdb.QuoteIdent(source.Table.Name), duckdb.QuoteString(filepath.ToSlash(source.Path)))
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return Summary{}, fmt.Errorf("load %s: %w", source.Table.Name, err)
		}

		var rows int64
		if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+duckdb.QuoteIdent(source.Table.Name)).Scan(&rows); err != nil {
			return Summary{}, fmt.Errorf("count %s: %w", source.Table.Name, err)
		}
		if source.Rows > 0 && rows != source.Rows {
			return Summary{}, fmt.Errorf("load %s: loaded %d rows, parquet footer reports %d", source.Table.Name, rows, source.Rows)
		}
		summary.Tables = append(summary.Tables, TableSummary{Name: source.Table.Name, Rows: rows})
		l.logger.Info("table loaded", slog.String("table", source.Table.Name), slog.Int64("rows", rows))
	}

	for _, source := range sources {
		if source.Table.ClusterBy == "" {
			continue
		}
		name := duckdb.QuoteIdent(source.Table.Name)
		stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s ORDER BY %s",
			name, name, duckdb.QuoteIdent(source.Table.ClusterBy))
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return Summary{}, fmt.Errorf("cluster %s by %s: %w", source.Table.Name, source.Table.ClusterBy, err)
		}
		l.logger.Debug("table clustered", slog.String("table", source.Table.Name), slog.String("by", source.Table.ClusterBy))
	}

	summary.Duration = time.Since(started)
	return summary, nil
}
