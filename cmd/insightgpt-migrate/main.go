package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	insightpostgres "github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights/postgres"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/migrations"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("insightgpt-migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	direction := fs.String("direction", "up", "migration direction: up|down|status")
	steps := fs.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	dsn := fs.String("dsn", "", "journal DSN; defaults to INSIGHTGPT_JOURNAL_DSN")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	switch *direction {
	case "up", "down", "status":
	default:
		fmt.Fprintf(stderr, "invalid direction: %s\n", *direction)
		return 2
	}

	cfg, err := config.LoadFromEnv("insightgpt-migrate")
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	if *dsn != "" {
		cfg.Journal.DSN = *dsn
	}
	if cfg.Journal.DSN == "" {
		fmt.Fprintln(stderr, "INSIGHTGPT_JOURNAL_DSN or -dsn is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	db, err := insightpostgres.OpenDB(ctx, cfg.Journal)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(stderr, "migration up failed after %d step(s): %v\n", applied, err)
			return 1
		}
		fmt.Fprintf(stdout, "applied %d migration(s)\n", applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(stderr, "migration down failed after %d step(s): %v\n", rolledBack, err)
			return 1
		}
		fmt.Fprintf(stdout, "rolled back %d migration(s)\n", rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(stderr, "migration status failed: %v\n", err)
			return 1
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(stdout, "%06d %-28s %s\n", s.Version, s.Name, state)
		}
	}
	return 0
}
