package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/config"
	"github.com/quietlabs/docbot/internal/health"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	asJSON := flag.Bool("json", false, "Print probe results as JSON")
	flag.Parse()

	logger.Init(*debug)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	checker := health.NewChecker(azureClient, azureClient, chunkStore, cfg.EmbedDim)
	results := checker.CheckAll(ctx)

	if *asJSON {
		json.NewEncoder(os.Stdout).Encode(results)
	}

	if !health.Healthy(results) {
		os.Exit(1)
	}
}
