package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/ingest"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	duckdbstore "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query/duckdb"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("insightgpt-ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	dataDir := flag.String("data-dir", "data/processed", "directory holding one parquet file per table")
	dbPath := flag.String("db", cfg.Store.Path, "DuckDB file to (re)build")
	reportPath := flag.String("report", "docs/ingest_report.md", "sanity report output; empty to skip the checks")
	writeSchema := flag.Bool("schema", true, "refresh the schema descriptor after loading")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := ingest.Discover(*dataDir, ingest.Tables)
	if err != nil {
		var missing *ingest.MissingFilesError
		if errors.As(err, &missing) {
			for _, path := range missing.Paths {
				fmt.Fprintf(os.Stderr, "missing: %s\n", path)
			}
		}
		logger.Error("parquet discovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		logger.Error("failed to create store directory", slog.Any("error", err))
		os.Exit(1)
	}
	db, err := duckdbstore.OpenDatabase(*dbPath, false)
	if err != nil {
		logger.Error("failed to open analytical store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	summary, err := ingest.NewLoader(db, logger).Load(ctx, sources)
	if err != nil {
		logger.Error("ingest failed", slog.Any("error", err))
		os.Exit(1)
	}
	for _, table := range summary.Tables {
		fmt.Printf("%-12s %d rows\n", table.Name, table.Rows)
	}
	logger.Info("ingest complete", slog.String("db", *dbPath), slog.Duration("duration", summary.Duration))

	if *reportPath != "" {
		sanity, err := ingest.Check(ctx, db)
		if err != nil {
			logger.Error("sanity checks failed", slog.Any("error", err))
			os.Exit(1)
		}
		if err := os.MkdirAll(filepath.Dir(*reportPath), 0o755); err != nil {
			logger.Error("failed to create report directory", slog.Any("error", err))
			os.Exit(1)
		}
		if err := os.WriteFile(*reportPath, []byte(sanity.Markdown()), 0o644); err != nil {
			logger.Error("failed to write sanity report", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *reportPath)
	}

	if *writeSchema {
		desc, err := schema.Introspect(ctx, db, schema.OlistHints)
		if err != nil {
			logger.Error("schema introspection failed", slog.Any("error", err))
			os.Exit(1)
		}
		if err := schema.WriteFile(cfg.Schema.Path, desc); err != nil {
			logger.Error("failed to write schema descriptor", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.Schema.MarkdownPath != "" {
			if err := schema.WriteMarkdownFile(cfg.Schema.MarkdownPath, desc); err != nil {
				logger.Error("failed to write schema markdown", slog.Any("error", err))
				os.Exit(1)
			}
		}
		fmt.Printf("wrote %s\n", cfg.Schema.Path)
	}
}
