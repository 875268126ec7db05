package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/cli/insightctl"
)

func main() {
	_ = godotenv.Load()
	options := insightctl.OptionsFromEnv(os.LookupEnv, os.Stderr)
	options.Stdout = os.Stdout
	options.Stderr = os.Stderr

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := insightctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}
