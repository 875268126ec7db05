package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/api"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/auth"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation/gemini"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation/openai"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	insightfile "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights/file"
	insightpostgres "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights/postgres"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/nl2sql"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/orchestrator"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
	duckdbstore "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query/duckdb"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/report"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/session"
	s3store "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("insightgpt-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	// A missing store or schema is reported per question and through
	// readiness so the API still serves health, insights and reports.
	var executor query.Executor
	storeCheck := api.ReadinessCheck(func(context.Context) error { return query.ErrStoreNotFound })
	store, err := duckdbstore.Open(context.Background(), duckdbstore.Options{
		Path:         cfg.Store.Path,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		QueryTimeout: cfg.Store.QueryTimeout,
		RowLimit:     cfg.Store.RowLimit,
	}, logger)
	switch {
	case err == nil:
		defer func() { _ = store.Close() }()
		executor = store
		storeCheck = api.CheckStore(store)
	case errors.Is(err, query.ErrStoreNotFound):
		logger.Warn("analytical store not found, run insightgpt-ingest first", slog.String("path", cfg.Store.Path))
	default:
		logger.Error("failed to open analytical store", slog.Any("error", err))
		os.Exit(1)
	}

	var desc *schema.Descriptor
	loaded, err := schema.LoadFile(cfg.Schema.Path)
	switch {
	case err == nil:
		desc = &loaded
	case errors.Is(err, schema.ErrDescriptorNotFound):
		logger.Warn("schema descriptor not found, run insightgpt-schema first", slog.String("path", cfg.Schema.Path))
	default:
		logger.Error("failed to load schema descriptor", slog.Any("error", err))
		os.Exit(1)
	}

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize language model", slog.Any("error", err))
		os.Exit(1)
	}

	var agentSchema schema.Descriptor
	if desc != nil {
		agentSchema = *desc
	}
	agent := nl2sql.NewAgent(agentSchema, generator, executor, nl2sql.Options{Retry: cfg.AI.RetryEnabled}, logger)
	router := orchestrator.NewRouter(generator, agent, logger)

	journal, publicationLog, closeJournal, err := openJournal(cfg, logger)
	if err != nil {
		logger.Error("failed to open insight journal", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeJournal()

	sessions := session.NewRegistry(cfg.Sessions.TTL, cfg.Sessions.CleanupInterval)
	if err := observability.RegisterSessionGauge(sessions.Count); err != nil {
		logger.Error("failed to register session gauge", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:   logger,
		Chat:     router,
		Sessions: sessions,
		Journal:  journal,
		Schema:   desc,
		Readiness: api.CombineReadinessChecks(
			storeCheck,
			api.CheckSchema(desc),
			api.CheckJournal(journal),
		),
		DependencyTimeout: time.Second,
	}

	if cfg.Reports.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Reports.Endpoint,
			Region:           cfg.Reports.Region,
			Bucket:           cfg.Reports.Bucket,
			AccessKeyID:      cfg.Reports.AccessKeyID,
			SecretAccessKey:  cfg.Reports.SecretAccessKey,
			UseSSL:           cfg.Reports.UseSSL,
			Prefix:           cfg.Reports.Prefix,
			AutoCreateBucket: cfg.Reports.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize report store", slog.Any("error", err))
			os.Exit(1)
		}
		publisher, err := report.NewPublisher(journal, objectStore, publicationLog, report.PublisherConfig{
			Title:  cfg.Reports.Title,
			Author: cfg.Reports.Author,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize report publisher", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Publisher = publisher
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("provider", cfg.AI.Provider),
			slog.Any("models", generator.Models()),
			slog.String("journal", cfg.Journal.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newGenerator(cfg config.Config, logger *slog.Logger) (*generation.FallbackGenerator, error) {
	var client generation.Client
	switch cfg.AI.Provider {
	case config.ProviderOpenAI:
		c, err := openai.New(openai.Config{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		client = c
	default:
		c, err := gemini.New(gemini.Config{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}
	return generation.NewFallbackGenerator(client, cfg.AI.Model, cfg.AI.FallbackModels, cfg.AI.Timeout, logger)
}

// openJournal returns the configured journal, the publication log when the
// backend keeps one, and a close func.
func openJournal(cfg config.Config, logger *slog.Logger) (insights.Journal, insights.PublicationLog, func(), error) {
	switch cfg.Journal.Backend {
	case config.JournalPostgres:
		journal, err := insightpostgres.Connect(context.Background(), cfg.Journal)
		if err != nil {
			return nil, nil, nil, err
		}
		return journal, journal, func() { _ = journal.Close() }, nil
	case config.JournalFile:
		journal, err := insightfile.New(cfg.Journal.FilePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return journal, nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported journal backend %q", cfg.Journal.Backend)
	}
}
