package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	duckdbstore "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query/duckdb"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("insightgpt-schema")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	dbPath := flag.String("db", cfg.Store.Path, "DuckDB file to introspect")
	jsonPath := flag.String("out", cfg.Schema.Path, "schema descriptor JSON output")
	mdPath := flag.String("markdown", cfg.Schema.MarkdownPath, "schema markdown output; empty to skip")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stderr)
	db, err := duckdbstore.OpenDatabase(*dbPath, true)
	if err != nil {
		logger.Error("failed to open analytical store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	desc, err := schema.Introspect(ctx, db, schema.OlistHints)
	if err != nil {
		logger.Error("schema introspection failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := schema.WriteFile(*jsonPath, desc); err != nil {
		logger.Error("failed to write schema descriptor", slog.Any("error", err))
		os.Exit(1)
	}
	if *mdPath != "" {
		if err := schema.WriteMarkdownFile(*mdPath, desc); err != nil {
			logger.Error("failed to write schema markdown", slog.Any("error", err))
			os.Exit(1)
		}
	}
	fmt.Printf("wrote %s (%d tables)\n", *jsonPath, len(desc.Tables))
}
