package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/models", "test-key", "DeepSeek-R1", "text-embedding-3-small")
	require.NoError(t, err)
	return client, srv
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	_, err := NewClient("https://example.services.ai.azure.com/openai", "key", "chat", "embed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/models")

	_, err = NewClient("", "key", "chat", "embed")
	require.Error(t, err)
}

func TestEmbeddingsReordersByIndex(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/embeddings", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		// Return items out of order on purpose.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{0.2, 0.2}},
				{"index": 0, "embedding": []float32{0.1, 0.1}},
			},
		})
	})

	vectors, err := client.Embeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestEmbeddingsRejectsShortResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{0.1}},
			},
		})
	})

	_, err := client.Embeddings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2")
}

func TestChatCompletionStripsReasoning(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/chat/completions", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": "<think>recalling the context</think>The sky is blue.",
					},
				},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	result, err := client.ChatCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "What color is the sky?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", result.Content)
	assert.Equal(t, 15, result.Usage.TotalTokens)
}

func TestChatCompletionAPIErrorIsPermanent(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "401", "message": "invalid api key"},
		})
	})

	_, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1, calls, "auth failures must not be retried")
	assert.NotErrorIs(t, err, ErrUpstreamTimeout)
}

func TestChatCompletionRetriesTransientFailures(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Equal(t, maxRetries+1, calls)
}
