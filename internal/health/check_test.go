package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/store"
)

type probeEmbedder struct {
	dim int
	err error
}

func (p *probeEmbedder) Embeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return [][]float32{make([]float32, p.dim)}, nil
}

type probeCompleter struct {
	reply string
	err   error
}

func (p *probeCompleter) ChatCompletion(ctx context.Context, messages []azure.ChatMessage) (*azure.Completion, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &azure.Completion{Content: p.reply}, nil
}

type probeSearcher struct {
	err error
}

func (p *probeSearcher) Search(ctx context.Context, vector []float32, k int, sources []string) ([]store.Hit, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []store.Hit{}, nil
}

func TestCheckAllHealthy(t *testing.T) {
	c := NewChecker(&probeEmbedder{dim: 8}, &probeCompleter{reply: "ok"}, &probeSearcher{}, 8)
	results := c.CheckAll(context.Background())
	require.Len(t, results, 3)
	assert.True(t, Healthy(results))
}

func TestCheckEmbeddingsDimensionMismatch(t *testing.T) {
	c := NewChecker(&probeEmbedder{dim: 4}, &probeCompleter{reply: "ok"}, &probeSearcher{}, 8)
	err := c.CheckEmbeddings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 8")
}

func TestCheckChatStrictMatch(t *testing.T) {
	c := NewChecker(&probeEmbedder{dim: 8}, &probeCompleter{reply: "Sure, I can help with that!"}, &probeSearcher{}, 8)
	require.Error(t, c.CheckChat(context.Background()))

	// Case and whitespace are tolerated; extra words are not.
	c = NewChecker(&probeEmbedder{dim: 8}, &probeCompleter{reply: " OK \n"}, &probeSearcher{}, 8)
	require.NoError(t, c.CheckChat(context.Background()))
}

func TestCheckAllReportsFailures(t *testing.T) {
	c := NewChecker(
		&probeEmbedder{err: errors.New("connection refused")},
		&probeCompleter{reply: "ok"},
		&probeSearcher{err: errors.New("collection not loaded")},
		8,
	)
	results := c.CheckAll(context.Background())
	require.Len(t, results, 3)
	assert.False(t, Healthy(results))
	assert.False(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.False(t, results[2].OK)
	assert.Contains(t, results[2].Error, "collection not loaded")
}
