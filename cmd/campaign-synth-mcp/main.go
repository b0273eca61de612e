package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/app"
	"github.com/spawn-mcp/campaign-synth/pkg/config"
	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/mcp"
	"github.com/spawn-mcp/campaign-synth/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CAMPAIGN_CONFIG"), "path to YAML config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Environment: cfg.Service.Environment,
		LogLevel:    cfg.Service.LogLevel,
		ServiceName: cfg.Service.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, log, app.Overrides{})
	if err != nil {
		log.Fatal("Failed to wire campaign synthesis", zap.Error(err))
	}
	defer a.Close()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	srv := mcp.NewMCPServer(a.Orchestrator, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			log.Error("Server error", zap.Error(err))
		}
	}

	srv.Close()
}
