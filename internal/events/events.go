package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quietlabs/docbot/internal/logger"
)

// Event statuses
const (
	StatusOK      = "ok"
	StatusFail    = "fail"
	StatusNoMatch = "no_match"
)

// snippetLen caps how much question and answer text an event retains. Events
// are an audit trail, not a transcript.
const snippetLen = 50

// QueryEvent records one answered (or failed) question. User identity is
// stored only as a truncated hash; raw IDs never reach disk.
type QueryEvent struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	CreatedAt     int64  `gorm:"index" json:"created_at"`
	CorrelationID string `gorm:"size:36" json:"correlation_id"`
	HashedUserID  string `gorm:"size:12;index" json:"hashed_user_id"`
	Status        string `gorm:"size:16;index" json:"status"`

	QuestionSnip string `gorm:"size:255" json:"question"`
	AnswerSnip   string `gorm:"size:255" json:"answer"`
	Sources      string `gorm:"size:1024" json:"sources"`
	ErrorKind    string `gorm:"size:64" json:"error_kind,omitempty"`

	LatencyMS int64 `json:"latency_ms"`
	EmbedMS   int64 `json:"embed_ms"`
	SearchMS  int64 `json:"search_ms"`
	ChatMS    int64 `json:"chat_ms"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summary aggregates the last 24 hours of events.
type Summary struct {
	Total        int64   `json:"total"`
	OK           int64   `json:"ok"`
	Failed       int64   `json:"failed"`
	NoMatch      int64   `json:"no_match"`
	UniqueUsers  int64   `json:"unique_users"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	TotalTokens  int64   `json:"total_tokens"`
}

// Recorder persists query events to a local SQLite database.
type Recorder struct {
	db *gorm.DB
}

// Open creates or opens the events database at path and migrates the schema.
func Open(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create events directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open events database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get events database handle: %w", err)
	}
	// SQLite supports a single writer; see https://github.com/glebarez/sqlite/issues/52
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&QueryEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate events schema: %w", err)
	}

	logger.MonitorInfo("Events database ready at %s", path)
	return &Recorder{db: db}, nil
}

// NewEvent starts an event with a fresh correlation ID and a hashed user.
func NewEvent(userID, status string) *QueryEvent {
	return &QueryEvent{
		CreatedAt:     time.Now().Unix(),
		CorrelationID: uuid.NewString(),
		HashedUserID:  HashUser(userID),
		Status:        status,
	}
}

// Append stores one event. Snippets are truncated before they hit disk.
func (r *Recorder) Append(ctx context.Context, ev *QueryEvent) error {
	ev.QuestionSnip = truncate(ev.QuestionSnip, snippetLen)
	ev.AnswerSnip = truncate(ev.AnswerSnip, snippetLen)
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered by status.
func (r *Recorder) Recent(ctx context.Context, limit int, status string) ([]QueryEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var events []QueryEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}
	return events, nil
}

// Summarize aggregates events recorded in the last 24 hours.
func (r *Recorder) Summarize(ctx context.Context) (*Summary, error) {
	since := time.Now().Add(-24 * time.Hour).Unix()
	window := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&QueryEvent{}).Where("created_at >= ?", since)
	}

	var s Summary
	if err := window().Count(&s.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	if s.Total == 0 {
		return &s, nil
	}

	counts := []struct {
		status string
		dest   *int64
	}{
		{StatusOK, &s.OK},
		{StatusFail, &s.Failed},
		{StatusNoMatch, &s.NoMatch},
	}
	for _, c := range counts {
		if err := window().Where("status = ?", c.status).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s events: %w", c.status, err)
		}
	}

	row := window().
		Select("COUNT(DISTINCT hashed_user_id) AS users, COALESCE(AVG(latency_ms), 0) AS avg_latency, COALESCE(SUM(total_tokens), 0) AS tokens").
		Row()
	if err := row.Scan(&s.UniqueUsers, &s.AvgLatencyMS, &s.TotalTokens); err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}
	return &s, nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HashUser anonymizes a user identifier to the first 12 hex characters of its
// SHA-256. An empty identifier maps to "anon".
func HashUser(userID string) string {
	if userID == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:12]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
