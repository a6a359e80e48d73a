package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/config"
	"github.com/quietlabs/docbot/internal/events"
	"github.com/quietlabs/docbot/internal/health"
	"github.com/quietlabs/docbot/internal/ingest"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/monitor"
	"github.com/quietlabs/docbot/internal/store"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger.Init(*debug)
	logger.Info("Starting monitoring dashboard...")

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	azureClient, err := azure.NewClient(cfg.AzureEndpoint, cfg.AzureKey, cfg.ChatModel, cfg.EmbedModel)
	if err != nil {
		logger.Error("Failed to initialize Azure client: %v", err)
		os.Exit(1)
	}

	chunkStore, err := store.NewStore(ctx, cfg.MilvusAddr, cfg.EmbedDim)
	if err != nil {
		logger.Error("Failed to initialize chunk store: %v", err)
		os.Exit(1)
	}
	defer chunkStore.Close(context.Background())

	recorder, err := events.Open(cfg.EventsDBPath)
	if err != nil {
		logger.Error("Failed to open events database: %v", err)
		os.Exit(1)
	}
	defer recorder.Close()

	ingester := ingest.NewService(azureClient, chunkStore, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedDim, cfg.MaxUploadBytes())
	checker := health.NewChecker(azureClient, azureClient, chunkStore, cfg.EmbedDim)

	server := monitor.NewServer(chunkStore, ingester, recorder, checker, cfg.MaxUploadBytes(), *debug)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down dashboard...")
		cancel()
	}()

	if err := server.Start(ctx, cfg.MonitorAddr); err != nil {
		logger.Error("Dashboard stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Dashboard has been shut down")
}
