package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/mkharlamov/corporate-agent/internal/adapters/mcp"
	"github.com/mkharlamov/corporate-agent/internal/bootstrap"
	"github.com/mkharlamov/corporate-agent/internal/config"
	"github.com/mkharlamov/corporate-agent/internal/observability/logging"
)

const serviceName = "corporate-agent-mcp"

const version = "0.1.0"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(version, app.Index, app.Repo)
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
