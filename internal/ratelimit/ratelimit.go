package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited signals that a user exhausted their question budget for the
// current window.
var ErrRateLimited = errors.New("rate limit exceeded")

type userWindow struct {
	start time.Time
	used  int
}

// Limiter enforces a fixed window per user: count questions per window, and
// the counter only resets once the whole window has elapsed. Nothing refills
// mid-window.
type Limiter struct {
	mu     sync.Mutex
	byUser map[string]*userWindow
	count  int
	window time.Duration
}

func New(count int, window time.Duration) *Limiter {
	if count <= 0 {
		count = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		byUser: make(map[string]*userWindow),
		count:  count,
		window: window,
	}
}

// Allow consumes one slot for the user. It returns ErrRateLimited when the
// budget is spent and the window has not elapsed yet.
func (l *Limiter) Allow(userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.byUser[userID]
	if !ok || now.Sub(w.start) >= l.window {
		w = &userWindow{start: now}
		l.byUser[userID] = w
	}
	if w.used >= l.count {
		return ErrRateLimited
	}
	w.used++
	return nil
}
