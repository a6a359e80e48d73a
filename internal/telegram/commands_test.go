package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{"!ask why is the sky blue?", true, "ask", "why is the sky blue?"},
		{"/ask why is the sky blue?", true, "ask", "why is the sky blue?"},
		{"/ask@DocBot what is this?", true, "ask", "what is this?"},
		{"!HELP", true, "help", ""},
		{"  /sources  ", true, "sources", ""},
		{"!delete report.pdf", true, "delete", "report.pdf"},
		{"plain question", false, "", ""},
		{"!", false, "", ""},
		{"/", false, "", ""},
		{"", false, "", ""},
		{"!@mention only", false, "", ""},
	}

	for _, tt := range tests {
		cmd, ok := parseCommand(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		if ok {
			assert.Equal(t, tt.wantName, cmd.Name, "input %q", tt.in)
			assert.Equal(t, tt.wantArgs, cmd.Args, "input %q", tt.in)
		}
	}
}

func TestStripMention(t *testing.T) {
	text, ok := stripMention("@DocBot why is the sky blue?", "DocBot")
	assert.True(t, ok)
	assert.Equal(t, "why is the sky blue?", text)

	text, ok = stripMention("why is the sky blue @docbot", "DocBot")
	assert.True(t, ok)
	assert.Equal(t, "why is the sky blue", text)

	_, ok = stripMention("no mention here", "DocBot")
	assert.False(t, ok)

	_, ok = stripMention("@OtherBot hello", "DocBot")
	assert.False(t, ok)

	_, ok = stripMention("@DocBot hi", "")
	assert.False(t, ok)
}

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("short answer", 100)
	require.Len(t, parts, 1)
	assert.Equal(t, "short answer", parts[0])
}

func TestSplitMessagePrefersBoundaries(t *testing.T) {
	text := strings.Repeat("word ", 100)
	parts := splitMessage(strings.TrimSpace(text), 97)

	require.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.LessOrEqual(t, len([]rune(part)), 97)
		// Splitting at spaces keeps every word whole.
		for _, w := range strings.Fields(part) {
			assert.Equal(t, "word", w)
		}
	}
}

func TestSplitMessageNewlineBoundary(t *testing.T) {
	text := strings.Repeat("line of text\n", 50)
	parts := splitMessage(text, 100)
	require.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.True(t, strings.HasSuffix(part, "text"), "part should end at a line boundary: %q", part)
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	// No boundaries at all forces a mid-run cut.
	text := strings.Repeat("x", 250)
	parts := splitMessage(text, 100)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 100)
	assert.Len(t, parts[1], 100)
	assert.Len(t, parts[2], 50)
}
