package ingest

import "strings"

// Chunker splits page text into fixed-size character windows with overlap.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk normalizes whitespace and slices the text into rune windows of the
// configured size, each window starting overlap runes before the previous one
// ended. Text at or under the window size yields a single chunk.
func (c *Chunker) Chunk(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= c.size {
		return []string{normalized}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}
	return chunks
}
