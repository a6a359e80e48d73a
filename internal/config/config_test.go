package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AZURE_AI_ENDPOINT", "https://example.services.ai.azure.com/models")
	t.Setenv("AZURE_AI_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "DeepSeek-R1", cfg.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, 1536, cfg.EmbedDim)
	assert.Equal(t, "localhost:19530", cfg.MilvusAddr)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 6, cfg.TopK)
	assert.Equal(t, 0.5, cfg.ScoreThreshold)
	assert.Equal(t, 5, cfg.RateLimitCount)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "127.0.0.1:5000", cfg.MonitorAddr)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
}

func TestLoadRequiresAzureSettings(t *testing.T) {
	t.Setenv("AZURE_AI_ENDPOINT", "")
	t.Setenv("AZURE_AI_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAG_TOP_K", "six")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "RAG_TOP_K")
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRequireTelegram(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.RequireTelegram(), ErrConfig)

	t.Setenv("TG_BOT_TOKEN", "123:abc")
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAG_THRESHOLD", "0.75")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "120")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.ScoreThreshold)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitWindow)
}
