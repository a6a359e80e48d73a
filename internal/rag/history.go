package rag

import (
	"sync"

	"github.com/quietlabs/docbot/internal/azure"
)

// History keeps a bounded per-user conversation window so follow-up questions
// carry context. Only user and assistant turns are stored.
type History struct {
	mu       sync.Mutex
	maxTurns int
	byUser   map[string][]azure.ChatMessage
}

func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &History{
		maxTurns: maxTurns,
		byUser:   make(map[string][]azure.ChatMessage),
	}
}

// Messages returns a copy of the user's recent turns in order.
func (h *History) Messages(userID string) []azure.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.byUser[userID]
	out := make([]azure.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Record appends one question and answer pair, trimming the oldest turns
// beyond the window. One turn is two messages.
func (h *History) Record(userID, question, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.byUser[userID],
		azure.ChatMessage{Role: "user", Content: question},
		azure.ChatMessage{Role: "assistant", Content: answer},
	)
	if max := h.maxTurns * 2; len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	h.byUser[userID] = msgs
}

// Clear drops the user's conversation window.
func (h *History) Clear(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byUser, userID)
}
