package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrConfig marks a missing or malformed required setting. Configuration
// failures are fatal at startup; nothing retries them.
var ErrConfig = errors.New("invalid configuration")

// Config holds the full application configuration. It is built once at
// process start and passed by parameter; no component reads the environment
// after Load returns.
type Config struct {
	// Chat platform
	TelegramToken  string
	AdminUserIDs   string
	AllowedUserIDs string

	// Azure AI Foundry ("models" endpoint)
	AzureEndpoint string
	AzureKey      string
	ChatModel     string
	EmbedModel    string
	EmbedDim      int

	// Storage
	MilvusAddr   string
	EventsDBPath string

	// Ingestion
	MaxUploadMB  int
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK           int
	ScoreThreshold float64
	MaxHistory     int
	MaxQuestionLen int

	// Rate limiting
	RateLimitCount  int
	RateLimitWindow time.Duration

	// Dashboard
	MonitorAddr string
}

// Load builds a Config from the environment. Defaults mirror the values the
// bot was tuned with; only connection settings are required.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken:  os.Getenv("TG_BOT_TOKEN"),
		AdminUserIDs:   os.Getenv("ADMIN_USER_IDS"),
		AllowedUserIDs: os.Getenv("ALLOWED_USER_IDS"),

		AzureEndpoint: os.Getenv("AZURE_AI_ENDPOINT"),
		AzureKey:      os.Getenv("AZURE_AI_KEY"),
		ChatModel:     getEnvWithDefault("CHAT_MODEL", "DeepSeek-R1"),
		EmbedModel:    getEnvWithDefault("EMBED_MODEL", "text-embedding-3-small"),

		MilvusAddr:   getEnvWithDefault("MILVUS_ADDR", "localhost:19530"),
		EventsDBPath: getEnvWithDefault("EVENTS_DB_PATH", "./data/events.db"),

		MonitorAddr: getEnvWithDefault("MONITOR_ADDR", "127.0.0.1:5000"),
	}

	var err error
	if cfg.EmbedDim, err = getEnvInt("EMBED_DIM", 1536); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = getEnvInt("MAX_UPLOAD_MB", 10); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 200); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getEnvInt("RAG_TOP_K", 6); err != nil {
		return nil, err
	}
	if cfg.ScoreThreshold, err = getEnvFloat("RAG_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.MaxHistory, err = getEnvInt("RAG_MAX_HISTORY", 5); err != nil {
		return nil, err
	}
	if cfg.MaxQuestionLen, err = getEnvInt("MAX_QUESTION_LEN", 500); err != nil {
		return nil, err
	}
	if cfg.RateLimitCount, err = getEnvInt("RATE_LIMIT_COUNT", 5); err != nil {
		return nil, err
	}
	window, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(window) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AzureEndpoint == "" {
		return fmt.Errorf("%w: AZURE_AI_ENDPOINT is required", ErrConfig)
	}
	if c.AzureKey == "" {
		return fmt.Errorf("%w: AZURE_AI_KEY is required", ErrConfig)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("%w: EMBED_DIM must be positive", ErrConfig)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			ErrConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: RAG_TOP_K must be positive", ErrConfig)
	}
	if c.RateLimitCount <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: rate limit count and window must be positive", ErrConfig)
	}
	return nil
}

// RequireTelegram validates the settings only the bot entrypoint needs.
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: TG_BOT_TOKEN is required", ErrConfig)
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// getEnvWithDefault gets an environment variable or returns a default value.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfig, key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrConfig, key, value)
	}
	return f, nil
}
