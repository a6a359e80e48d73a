package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/store"
)

// Ingestion failure kinds. All of them wrap ErrIngest so callers can treat
// ingestion problems uniformly while still branching on the specific cause.
var (
	ErrIngest     = errors.New("ingestion failed")
	ErrInvalidPDF = fmt.Errorf("%w: not a readable PDF", ErrIngest)
	ErrNoText     = fmt.Errorf("%w: document contains no extractable text", ErrIngest)
	ErrTooLarge   = fmt.Errorf("%w: document exceeds the upload size limit", ErrIngest)
)

// embedBatchSize is how many chunks are sent per embeddings request.
const embedBatchSize = 10

// Embedder produces one vector per input text.
type Embedder interface {
	Embeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter atomically replaces the stored chunks of one source.
type ChunkWriter interface {
	ReplaceChunks(ctx context.Context, source string, chunks []store.Chunk) error
}

// Service turns an uploaded PDF into embedded, searchable chunks.
type Service struct {
	embedder Embedder
	writer   ChunkWriter

	chunker      *Chunker
	embeddingDim int
	maxBytes     int64
}

func NewService(embedder Embedder, writer ChunkWriter, chunkSize, chunkOverlap, embeddingDim int, maxBytes int64) *Service {
	return &Service{
		embedder:     embedder,
		writer:       writer,
		chunker:      NewChunker(chunkSize, chunkOverlap),
		embeddingDim: embeddingDim,
		maxBytes:     maxBytes,
	}
}

// IngestPDF extracts, chunks, embeds, and stores a document. It returns the
// number of stored chunks. Re-ingesting the same source replaces its chunks.
func (s *Service) IngestPDF(ctx context.Context, source string, data []byte) (int, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return 0, fmt.Errorf("%w (%d bytes)", ErrTooLarge, len(data))
	}

	pages, err := ExtractPages(data)
	if err != nil {
		return 0, err
	}

	chunks := s.chunkPages(source, pages)
	if len(chunks) == 0 {
		return 0, ErrNoText
	}

	logger.IngestInfo("Embedding %d chunks from %q (%d pages)", len(chunks), source, len(pages))
	if err := s.embedChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIngest, err)
	}

	if err := s.writer.ReplaceChunks(ctx, source, chunks); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIngest, err)
	}

	logger.IngestInfo("Ingested %q: %d chunks stored", source, len(chunks))
	return len(chunks), nil
}

// chunkPages slices each page independently so a chunk never spans a page
// boundary and its citation stays precise.
func (s *Service) chunkPages(source string, pages []Page) []store.Chunk {
	var chunks []store.Chunk
	index := int64(0)
	for _, page := range pages {
		for i, text := range s.chunker.Chunk(page.Text) {
			chunks = append(chunks, store.Chunk{
				ID:         fmt.Sprintf("%s:p%03d:c%03d", source, page.Number, i),
				Text:       text,
				Source:     source,
				ChunkIndex: index,
				Page:       int64(page.Number),
			})
			index++
		}
	}
	return chunks
}

func (s *Service) embedChunks(ctx context.Context, chunks []store.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}

		vectors, err := s.embedder.Embeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch starting at chunk %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, vec := range vectors {
			if len(vec) != s.embeddingDim {
				return fmt.Errorf("chunk %s embedded with dimension %d, expected %d",
					batch[i].ID, len(vec), s.embeddingDim)
			}
			batch[i].Embedding = vec
		}
	}
	return nil
}
