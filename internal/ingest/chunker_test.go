package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Chunk("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestChunkEmptyAndWhitespaceOnly(t *testing.T) {
	c := NewChunker(1000, 200)
	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("  \n\t  "))
}

func TestChunkNormalizesWhitespace(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Chunk("one\n\ntwo\t three    four")
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three four", chunks[0])
}

func TestChunkWindowsWithOverlap(t *testing.T) {
	c := NewChunker(10, 3)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Chunk(text)

	require.Len(t, chunks, 4)
	assert.Equal(t, "abcdefghij", chunks[0])
	assert.Equal(t, "hijklmnopq", chunks[1])
	assert.Equal(t, "opqrstuvwx", chunks[2])
	assert.Equal(t, "vwxyz", chunks[3])

	// Consecutive windows share exactly the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-3:])
		assert.True(t, strings.HasPrefix(chunks[i], tail))
	}
}

func TestChunkCountsRunesNotBytes(t *testing.T) {
	c := NewChunker(4, 1)
	chunks := c.Chunk("日本語のテキストです")
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch)), 4)
	}
	// No chunk may split a rune.
	assert.Equal(t, "日本語の", chunks[0])
}

func TestChunkCoversAllText(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	normalized := strings.Join(strings.Fields(text), " ")

	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)

	// Stitching chunks back together minus overlaps reproduces the input.
	rebuilt := chunks[0]
	for _, ch := range chunks[1:] {
		runes := []rune(ch)
		rebuilt += string(runes[10:])
	}
	assert.Equal(t, normalized, rebuilt)
}

func TestNewChunkerSanitizesConfig(t *testing.T) {
	c := NewChunker(0, -5)
	assert.Equal(t, 1000, c.size)
	assert.Equal(t, 200, c.overlap)

	c = NewChunker(100, 100)
	assert.Equal(t, 20, c.overlap)
}
