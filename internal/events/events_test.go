package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestHashUser(t *testing.T) {
	assert.Equal(t, "anon", HashUser(""))
	assert.Len(t, HashUser("12345"), 12)
	assert.Equal(t, HashUser("12345"), HashUser("12345"))
	assert.NotEqual(t, HashUser("12345"), HashUser("12346"))
	// Never store the raw ID.
	assert.NotContains(t, HashUser("12345"), "12345")
}

func TestAppendAndRecent(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	ev := NewEvent("42", StatusOK)
	ev.QuestionSnip = "what color is the sky?"
	ev.AnswerSnip = "blue"
	ev.Sources = "sky.pdf"
	ev.LatencyMS = 1200
	ev.TotalTokens = 300
	require.NoError(t, rec.Append(ctx, ev))

	fail := NewEvent("43", StatusFail)
	fail.ErrorKind = "completion"
	require.NoError(t, rec.Append(ctx, fail))

	all, err := rec.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	failures, err := rec.Recent(ctx, 10, StatusFail)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "completion", failures[0].ErrorKind)
	assert.NotEmpty(t, failures[0].CorrelationID)
}

func TestAppendTruncatesSnippets(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	ev := NewEvent("1", StatusOK)
	ev.QuestionSnip = strings.Repeat("q", 1000)
	ev.AnswerSnip = strings.Repeat("a", 1000)
	require.NoError(t, rec.Append(ctx, ev))

	stored, err := rec.Recent(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Len(t, stored[0].QuestionSnip, 50)
	assert.Len(t, stored[0].AnswerSnip, 50)
}

func TestSummarizeWindowsAt24Hours(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	recent := NewEvent("1", StatusOK)
	recent.LatencyMS = 100
	recent.TotalTokens = 50
	require.NoError(t, rec.Append(ctx, recent))

	noMatch := NewEvent("2", StatusNoMatch)
	noMatch.LatencyMS = 300
	require.NoError(t, rec.Append(ctx, noMatch))

	old := NewEvent("3", StatusOK)
	old.CreatedAt = time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, rec.Append(ctx, old))

	s, err := rec.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(1), s.OK)
	assert.Equal(t, int64(1), s.NoMatch)
	assert.Equal(t, int64(0), s.Failed)
	assert.Equal(t, int64(2), s.UniqueUsers)
	assert.InDelta(t, 200.0, s.AvgLatencyMS, 0.01)
	assert.Equal(t, int64(50), s.TotalTokens)
}

func TestSummarizeEmpty(t *testing.T) {
	rec := openTestRecorder(t)
	s, err := rec.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Total)
}
