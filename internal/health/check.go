package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a chat reply.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []azure.ChatMessage) (*azure.Completion, error)
}

// Searcher runs a similarity search.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, sources []string) ([]store.Hit, error)
}

// Result reports the outcome of one probe.
type Result struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Checker runs end-to-end probes against every dependency. Each probe does
// real work rather than pinging; a probe that skips the actual call path
// proves nothing.
type Checker struct {
	embedder  Embedder
	completer Completer
	searcher  Searcher
	embedDim  int
}

func NewChecker(embedder Embedder, completer Completer, searcher Searcher, embedDim int) *Checker {
	return &Checker{
		embedder:  embedder,
		completer: completer,
		searcher:  searcher,
		embedDim:  embedDim,
	}
}

// CheckEmbeddings embeds a probe string and verifies the dimension matches
// the configured collection schema.
func (c *Checker) CheckEmbeddings(ctx context.Context) error {
	vectors, err := c.embedder.Embeddings(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embeddings probe failed: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embeddings probe returned %d vectors, expected 1", len(vectors))
	}
	if len(vectors[0]) != c.embedDim {
		return fmt.Errorf("embeddings probe returned dimension %d, expected %d", len(vectors[0]), c.embedDim)
	}
	return nil
}

// CheckChat asks the model to echo a fixed token and requires an exact match.
// Anything looser would pass even when the model ignores instructions, which
// is the failure mode the probe exists to catch.
func (c *Checker) CheckChat(ctx context.Context) error {
	completion, err := c.completer.ChatCompletion(ctx, []azure.ChatMessage{
		{Role: "system", Content: "You are a health check. Return ONLY the exact string: ok"},
		{Role: "user", Content: "ok"},
	})
	if err != nil {
		return fmt.Errorf("chat probe failed: %w", err)
	}
	if strings.TrimSpace(strings.ToLower(completion.Content)) != "ok" {
		return fmt.Errorf("chat probe expected %q, got %q", "ok", completion.Content)
	}
	return nil
}

// CheckSearch runs a real vector search against the collection. An empty
// collection still passes; only a broken connection or schema fails.
func (c *Checker) CheckSearch(ctx context.Context) error {
	probe := make([]float32, c.embedDim)
	probe[0] = 1
	if _, err := c.searcher.Search(ctx, probe, 1, nil); err != nil {
		return fmt.Errorf("search probe failed: %w", err)
	}
	return nil
}

// CheckAll runs every probe and returns one result each.
func (c *Checker) CheckAll(ctx context.Context) []Result {
	probes := []struct {
		name string
		run  func(context.Context) error
	}{
		{"embeddings", c.CheckEmbeddings},
		{"chat", c.CheckChat},
		{"vector_search", c.CheckSearch},
	}

	results := make([]Result, 0, len(probes))
	for _, probe := range probes {
		res := Result{Name: probe.name, OK: true}
		if err := probe.run(ctx); err != nil {
			res.OK = false
			res.Error = err.Error()
			logger.Error("Health probe %s failed: %v", probe.name, err)
		} else {
			logger.Info("Health probe %s passed", probe.name)
		}
		results = append(results, res)
	}
	return results
}

// Healthy reports whether every probe passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
