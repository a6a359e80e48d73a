package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/events"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

// ErrNoMatch means no stored chunk cleared the similarity threshold; the
// caller decides how to phrase that to the user.
var ErrNoMatch = errors.New("no relevant documents found")

// ErrCompletion wraps failures of the answer-generation step.
var ErrCompletion = errors.New("completion failed")

const systemPrompt = "You are a helpful assistant that answers questions using ONLY the provided document context. " +
	"If the context does not contain the answer, say that the answer is not in the documents. " +
	"Do not use outside knowledge. Keep answers concise and mention which document the information came from."

// Embedder produces one vector per input text.
type Embedder interface {
	Embeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher finds the chunks closest to a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, sources []string) ([]store.Hit, error)
}

// Completer generates the final answer from a prompt.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []azure.ChatMessage) (*azure.Completion, error)
}

// EventSink records one observability event per answered question.
type EventSink interface {
	Append(ctx context.Context, ev *events.QueryEvent) error
}

// Options tune retrieval and prompting.
type Options struct {
	TopK           int
	ScoreThreshold float64
	MaxHistory     int
	MaxQuestionLen int
}

// Answer is a grounded reply with the documents it was drawn from.
type Answer struct {
	Text      string
	Citations []string
}

// Pipeline wires embedding, retrieval, and completion into one question
// answering flow.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	completer Completer
	sink      EventSink
	history   *History
	opts      Options
}

func NewPipeline(embedder Embedder, searcher Searcher, completer Completer, sink EventSink, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.MaxQuestionLen <= 0 {
		opts.MaxQuestionLen = 500
	}
	return &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		completer: completer,
		sink:      sink,
		history:   NewHistory(opts.MaxHistory),
		opts:      opts,
	}
}

// ClearHistory drops the conversation window for one user.
func (p *Pipeline) ClearHistory(userID string) {
	p.history.Clear(userID)
}

// Answer runs the full retrieval flow for one question. It returns ErrNoMatch
// when nothing in the store is similar enough, and ErrCompletion when the
// language model call fails. Every outcome is recorded as an event.
func (p *Pipeline) Answer(ctx context.Context, userID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrNoMatch)
	}
	if runes := []rune(question); len(runes) > p.opts.MaxQuestionLen {
		question = string(runes[:p.opts.MaxQuestionLen])
	}

	started := time.Now()
	ev := events.NewEvent(userID, events.StatusOK)
	ev.QuestionSnip = question

	embedStart := time.Now()
	vectors, err := p.embedder.Embeddings(ctx, []string{question})
	ev.EmbedMS = time.Since(embedStart).Milliseconds()
	if err != nil {
		p.recordFailure(ctx, ev, started, "embed")
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		p.recordFailure(ctx, ev, started, "embed")
		return nil, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}

	searchStart := time.Now()
	hits, err := p.searcher.Search(ctx, vectors[0], p.opts.TopK, nil)
	ev.SearchMS = time.Since(searchStart).Milliseconds()
	if err != nil {
		p.recordFailure(ctx, ev, started, "search")
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	relevant := filterByScore(hits, float32(p.opts.ScoreThreshold))
	if len(relevant) == 0 {
		ev.Status = events.StatusNoMatch
		ev.LatencyMS = time.Since(started).Milliseconds()
		p.append(ctx, ev)
		logger.LLMInfo("No chunks above threshold %.2f for user %s", p.opts.ScoreThreshold, ev.HashedUserID)
		return nil, ErrNoMatch
	}

	citations := orderedSources(relevant)
	ev.Sources = strings.Join(citations, ",")

	messages := p.buildMessages(userID, question, relevant)

	chatStart := time.Now()
	completion, err := p.completer.ChatCompletion(ctx, messages)
	ev.ChatMS = time.Since(chatStart).Milliseconds()
	if err != nil {
		p.recordFailure(ctx, ev, started, "completion")
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	ev.AnswerSnip = completion.Content
	ev.PromptTokens = completion.Usage.PromptTokens
	ev.CompletionTokens = completion.Usage.CompletionTokens
	ev.TotalTokens = completion.Usage.TotalTokens
	ev.LatencyMS = time.Since(started).Milliseconds()
	p.append(ctx, ev)

	p.history.Record(userID, question, completion.Content)

	logger.LLMInfo("Answered user %s from %d chunks in %dms", ev.HashedUserID, len(relevant), ev.LatencyMS)
	return &Answer{Text: completion.Content, Citations: citations}, nil
}

// buildMessages assembles system prompt, grounded context, prior turns, and
// the current question. One context block per source and page; overlapping
// chunks from the same page repeat most of their text.
func (p *Pipeline) buildMessages(userID, question string, hits []store.Hit) []azure.ChatMessage {
	type sourcePage struct {
		source string
		page   int
	}
	seen := make(map[sourcePage]struct{})

	var b strings.Builder
	b.WriteString("Context from the document library:\n\n")
	for _, hit := range hits {
		key := sourcePage{hit.Source, int(hit.Page)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fmt.Fprintf(&b, "Content from %s (page %d):\n%s\n\n", hit.Source, hit.Page, hit.Text)
	}

	messages := []azure.ChatMessage{
		{Role: "system", Content: systemPrompt + "\n\n" + b.String()},
	}
	messages = append(messages, p.history.Messages(userID)...)
	messages = append(messages, azure.ChatMessage{Role: "user", Content: question})
	return messages
}

func (p *Pipeline) recordFailure(ctx context.Context, ev *events.QueryEvent, started time.Time, kind string) {
	ev.Status = events.StatusFail
	ev.ErrorKind = kind
	ev.LatencyMS = time.Since(started).Milliseconds()
	p.append(ctx, ev)
}

func (p *Pipeline) append(ctx context.Context, ev *events.QueryEvent) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Append(ctx, ev); err != nil {
		// Observability must never break answering.
		logger.LLMWarn("Failed to record event %s: %v", ev.CorrelationID, err)
	}
}

func filterByScore(hits []store.Hit, threshold float32) []store.Hit {
	out := make([]store.Hit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= threshold {
			out = append(out, hit)
		}
	}
	return out
}

// orderedSources returns the distinct source names in ranking order.
func orderedSources(hits []store.Hit) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, hit := range hits {
		if _, ok := seen[hit.Source]; ok {
			continue
		}
		seen[hit.Source] = struct{}{}
		sources = append(sources, hit.Source)
	}
	return sources
}
