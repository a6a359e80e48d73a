package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quietlabs/docbot/internal/auth"
	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/config"
	"github.com/quietlabs/docbot/internal/events"
	"github.com/quietlabs/docbot/internal/health"
	"github.com/quietlabs/docbot/internal/ingest"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/rag"
	"github.com/quietlabs/docbot/internal/ratelimit"
	"github.com/quietlabs/docbot/internal/store"
	"github.com/quietlabs/docbot/internal/telegram"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	skipHealthcheck := flag.Bool("skip-healthcheck", false, "Skip the startup health probes")
	flag.Parse()

	logger.Init(*debug)
	logger.Info("Starting document bot...")

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Initializing services...")

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

	if !*skipHealthcheck {
		checker := health.NewChecker(azureClient, azureClient, chunkStore, cfg.EmbedDim)
		checkCtx, checkCancel := context.WithTimeout(ctx, 2*time.Minute)
		results := checker.CheckAll(checkCtx)
		checkCancel()
		if !health.Healthy(results) {
			logger.Error("Startup health checks failed, refusing to start. Run with -skip-healthcheck to override.")
			os.Exit(1)
		}
		logger.Info("All startup health checks passed")
	}

	policy := auth.NewPolicyService(cfg.AdminUserIDs, cfg.AllowedUserIDs)
	limiter := ratelimit.New(cfg.RateLimitCount, cfg.RateLimitWindow)
	ingester := ingest.NewService(azureClient, chunkStore, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedDim, cfg.MaxUploadBytes())

	pipeline := rag.NewPipeline(azureClient, chunkStore, azureClient, recorder, rag.Options{
		TopK:           cfg.TopK,
		ScoreThreshold: cfg.ScoreThreshold,
		MaxHistory:     cfg.MaxHistory,
		MaxQuestionLen: cfg.MaxQuestionLen,
	})

	bot, err := telegram.NewBot(cfg.TelegramToken, pipeline, ingester, chunkStore, policy, limiter, cfg.MaxUploadBytes())
	if err != nil {
		logger.Error("Failed to initialize Telegram bot: %v", err)
		os.Exit(1)
	}

	logger.Info("Bot ready. Rate limit: %d questions per %s. Admins: %s",
		cfg.RateLimitCount, cfg.RateLimitWindow, adminSummary(cfg.AdminUserIDs))
	go bot.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down bot...")
	cancel()
	logger.Info("Bot has been shut down")
}

func adminSummary(ids string) string {
	if ids == "" {
		return "everyone (no ADMIN_USER_IDS set)"
	}
	return strconv.Quote(ids)
}
