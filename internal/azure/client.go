package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quietlabs/docbot/internal/logger"
)

const apiVersion = "2024-05-01-preview"

// maxRetries bounds how often a transient upstream failure is retried before
// it escalates to the caller.
const maxRetries = 3

// ErrUpstreamTimeout wraps transient network failures (connection errors,
// 408/429/5xx) that persisted through the bounded retry policy.
var ErrUpstreamTimeout = errors.New("upstream request failed after retries")

// errTransient marks failures the retry policy is allowed to retry.
var errTransient = errors.New("transient upstream error")

// Client talks to an Azure AI Foundry "models" endpoint for both embeddings
// and chat completions.
type Client struct {
	endpoint   string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// APIError represents an error payload returned by the service.
type APIError struct {
	Err struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ChatMessage is one message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the cleaned result of a chat completion call.
type Completion struct {
	Content string
	Usage   Usage
}

// NewClient creates a new Client. The endpoint must be the Foundry "models"
// base URL; embeddings and chat completions are resolved relative to it.
func NewClient(endpoint, apiKey, chatModel, embedModel string) (*Client, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and key are required")
	}
	// Foundry routes both APIs under /models; anything else is a misconfigured
	// OpenAI-style deployment URL.
	if !strings.HasSuffix(endpoint, "/models") {
		return nil, fmt.Errorf("AZURE_AI_ENDPOINT must end with '/models', got %q", endpoint)
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Generous timeout for LLM responses
		},
	}, nil
}

// Embeddings returns one vector per input text, in input order. The remote
// API may reorder items; they are sorted back by index before returning.
func (c *Client) Embeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: texts, Model: c.embedModel}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	url := fmt.Sprintf("%s/embeddings?api-version=%s", c.endpoint, apiVersion)
	if err := c.post(ctx, url, reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d items, expected %d", len(parsed.Data), len(texts))
	}

	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embeddings response item %d has an empty vector", i)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// ChatCompletion sends a chat completion request and returns the answer with
// private reasoning segments already stripped.
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	reqBody := struct {
		Messages    []ChatMessage `json:"messages"`
		Model       string        `json:"model"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}{Messages: messages, Model: c.chatModel, MaxTokens: 1500, Temperature: 0.6}

	var parsed struct {
		Choices []struct {
			FinishReason string      `json:"finish_reason"`
			Message      ChatMessage `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}

	logger.LLMInfo("Sending chat completion to '%s' with %d messages.", c.chatModel, len(messages))

	url := fmt.Sprintf("%s/chat/completions?api-version=%s", c.endpoint, apiVersion)
	if err := c.post(ctx, url, reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	if parsed.Usage.TotalTokens > 0 {
		logger.LLMInfo("Usage - Prompt: %d, Completion: %d, Total: %d tokens. Finish Reason: %s",
			parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens,
			parsed.Usage.TotalTokens, parsed.Choices[0].FinishReason)
	}

	return &Completion{
		Content: StripReasoning(parsed.Choices[0].Message.Content),
		Usage:   parsed.Usage,
	}, nil
}

// post sends a JSON request and decodes the response into out, retrying
// transient failures with exponential backoff.
func (c *Client) post(ctx context.Context, url string, in, out interface{}) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network-level failure, worth retrying.
			logger.LLMWarn("Request to %s failed: %v", url, err)
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr APIError
			msg := strings.TrimSpace(string(body))
			if json.Unmarshal(body, &apiErr) == nil && apiErr.Err.Message != "" {
				msg = apiErr.Err.Message
			}
			if isTransientStatus(resp.StatusCode) {
				logger.LLMWarn("Transient HTTP %d from %s: %s", resp.StatusCode, url, msg)
				return fmt.Errorf("%w: HTTP %d: %s", errTransient, resp.StatusCode, msg)
			}
			return backoff.Permanent(fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errTransient) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return err
	}
	return nil
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
