package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/durquijop/Cerebro-Visas-sub001/internal/adapters/mcp"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/bootstrap"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/config"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	// stdout carries the MCP protocol; logs go to stderr.
	slog.SetDefault(logging.New(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{WithoutQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer("case-documents", "1.0.0", mcpadapter.NewTools(app.SearchUC, app.DocsUC))
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_failed", "error", err.Error())
	}
}
