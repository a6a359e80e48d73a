package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/config"
	"github.com/quietlabs/docbot/internal/ingest"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	dir := flag.String("dir", "./data/docs", "Directory of PDF files to ingest")
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

	paths, err := filepath.Glob(filepath.Join(*dir, "*.pdf"))
	if err != nil {
		logger.Error("Failed to scan %s: %v", *dir, err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		logger.Info("No PDF files found in %s, nothing to do", *dir)
		return
	}
	logger.Info("Found %d PDF files in %s", len(paths), *dir)

	ctx := context.Background()

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

	// Bulk ingestion has no upload size cap; the operator owns the files.
	ingester := ingest.NewService(azureClient, chunkStore, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedDim, 0)

	failures := 0
	for _, path := range paths {
		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Failed to read %s: %v", path, err)
			failures++
			continue
		}

		count, err := ingester.IngestPDF(ctx, name, data)
		if err != nil {
			logger.Error("Failed to ingest %s: %v", name, err)
			failures++
			continue
		}
		logger.Info("Ingested %s: %d chunks", name, count)
	}

	if failures > 0 {
		logger.Error("Finished with %d of %d files failed", failures, len(paths))
		os.Exit(1)
	}
	logger.Info("All %d files ingested successfully", len(paths))
}
