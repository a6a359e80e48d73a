package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/quietlabs/docbot/internal/logger"
)

// Field names for the chunk collection
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldSource     = "source"
	FieldChunkIndex = "chunk_index"
	FieldPage       = "page"
	FieldCreatedAt  = "created_at"
	FieldEmbedding  = "embedding"
)

// ChunkCollection holds the embedded document chunks.
const ChunkCollection = "chunks"

// listQueryLimit caps how many rows the source aggregation scans. Milvus has
// no DISTINCT, so listing folds rows client side.
const listQueryLimit = 16384

// ErrNotFound is returned when an operation targets a source that has no
// chunks in the collection.
var ErrNotFound = errors.New("source not found")

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID         string
	Text       string
	Source     string
	ChunkIndex int64
	Page       int64
	CreatedAt  int64
	Embedding  []float32
}

// Hit is a chunk returned from a similarity search with its cosine score.
type Hit struct {
	Chunk
	Score float32
}

// SourceInfo summarizes one ingested document.
type SourceInfo struct {
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
	IngestedAt int64  `json:"ingested_at"`
}

// Stats summarizes the whole collection.
type Stats struct {
	Sources     int `json:"sources"`
	TotalChunks int `json:"total_chunks"`
}

// Store wraps a Milvus connection for chunk storage and retrieval.
type Store struct {
	client       *milvusclient.Client
	embeddingDim int
}

// NewStore connects to Milvus and ensures the chunk collection exists,
// is indexed, and is loaded into memory.
func NewStore(ctx context.Context, addr string, embeddingDim int) (*Store, error) {
	logger.StoreInfo("Connecting to Milvus at %s with dimension %d", addr, embeddingDim)

	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: addr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	s := &Store{
		client:       c,
		embeddingDim: embeddingDim,
	}
	if err := s.ensureCollection(ctx); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	hasOpt := milvusclient.NewHasCollectionOption(ChunkCollection)
	exists, err := s.client.HasCollection(ctx, hasOpt)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: ChunkCollection,
			Description:    "Embedded document chunks for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": "255",
					},
				},
				{
					Name:     FieldText,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     FieldSource,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "512",
					},
				},
				{
					Name:     FieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     FieldPage,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     FieldCreatedAt,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     FieldEmbedding,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.embeddingDim),
					},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(ChunkCollection, schema)
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		indexOpt := milvusclient.NewCreateIndexOption(ChunkCollection, FieldEmbedding, idx)
		if _, err := s.client.CreateIndex(ctx, indexOpt); err != nil {
			return fmt.Errorf("failed to create index on embedding field: %w", err)
		}

		logger.StoreInfo("Created collection with cosine HNSW index: %s", ChunkCollection)
	}

	loadOpt := milvusclient.NewLoadCollectionOption(ChunkCollection)
	if _, err := s.client.LoadCollection(ctx, loadOpt); err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", ChunkCollection, err)
	}
	return nil
}

// ReplaceChunks removes every stored chunk for the given source and inserts
// the new set. Re-ingesting the same document is therefore idempotent; a
// crash between delete and insert leaves the source absent rather than mixed.
func (s *Store) ReplaceChunks(ctx context.Context, source string, chunks []Chunk) error {
	deleteOpt := milvusclient.NewDeleteOption(ChunkCollection).
		WithExpr(sourceFilter(source))
	res, err := s.client.Delete(ctx, deleteOpt)
	if err != nil {
		return fmt.Errorf("failed to delete existing chunks for %q: %w", source, err)
	}
	if res.DeleteCount > 0 {
		logger.StoreInfo("Replaced %d existing chunks for %q", res.DeleteCount, source)
	}

	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().Unix()
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	indices := make([]int64, len(chunks))
	pages := make([]int64, len(chunks))
	createdAts := make([]int64, len(chunks))
	vectors := make([][]float32, len(chunks))

	for i, ch := range chunks {
		if len(ch.Embedding) != s.embeddingDim {
			return fmt.Errorf("chunk %s has embedding dimension %d, expected %d",
				ch.ID, len(ch.Embedding), s.embeddingDim)
		}
		ids[i] = ch.ID
		texts[i] = ch.Text
		sources[i] = source
		indices[i] = ch.ChunkIndex
		pages[i] = ch.Page
		createdAts[i] = now
		vectors[i] = ch.Embedding
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(ChunkCollection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldSource, sources),
		column.NewColumnInt64(FieldChunkIndex, indices),
		column.NewColumnInt64(FieldPage, pages),
		column.NewColumnInt64(FieldCreatedAt, createdAts),
		column.NewColumnFloatVector(FieldEmbedding, s.embeddingDim, vectors),
	)
	if _, err := s.client.Insert(ctx, insertOpt); err != nil {
		return fmt.Errorf("failed to insert chunks for %q: %w", source, err)
	}

	logger.StoreInfo("Stored %d chunks for %q", len(chunks), source)
	return nil
}

// Search returns up to k chunks ranked by cosine similarity to the query
// vector. When sources is non-empty the search is restricted to those
// documents.
func (s *Store) Search(ctx context.Context, vector []float32, k int, sources []string) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	if len(vector) != s.embeddingDim {
		return nil, fmt.Errorf("query vector has dimension %d, expected %d", len(vector), s.embeddingDim)
	}

	searchOpt := milvusclient.NewSearchOption(ChunkCollection, k,
		[]entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithOutputFields(FieldText, FieldSource, FieldChunkIndex, FieldPage, FieldCreatedAt)
	if len(sources) > 0 {
		searchOpt = searchOpt.WithFilter(sourcesFilter(sources))
	}

	results, err := s.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	if len(results) == 0 || results[0].ResultCount == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		id, err := rs.IDs.GetAsString(i)
		if err != nil {
			logger.StoreWarn("Skipping search result %d with unreadable id: %v", i, err)
			continue
		}

		hit := Hit{Chunk: Chunk{ID: id}}
		hit.Text = columnString(rs.GetColumn(FieldText), i)
		hit.Source = columnString(rs.GetColumn(FieldSource), i)
		hit.ChunkIndex = columnInt64(rs.GetColumn(FieldChunkIndex), i)
		hit.Page = columnInt64(rs.GetColumn(FieldPage), i)
		hit.CreatedAt = columnInt64(rs.GetColumn(FieldCreatedAt), i)
		if i < len(rs.Scores) {
			hit.Score = rs.Scores[i]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ListSources returns one summary per ingested document, sorted by name.
func (s *Store) ListSources(ctx context.Context) ([]SourceInfo, error) {
	queryOpt := milvusclient.NewQueryOption(ChunkCollection).
		WithOutputFields(FieldSource, FieldCreatedAt).
		WithLimit(listQueryLimit)

	result, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}

	sourceCol := result.GetColumn(FieldSource)
	createdCol := result.GetColumn(FieldCreatedAt)
	if sourceCol == nil {
		return []SourceInfo{}, nil
	}

	bySource := make(map[string]*SourceInfo)
	for i := 0; i < sourceCol.Len(); i++ {
		name, err := sourceCol.GetAsString(i)
		if err != nil || name == "" {
			continue
		}
		info, ok := bySource[name]
		if !ok {
			info = &SourceInfo{Source: name}
			bySource[name] = info
		}
		info.ChunkCount++
		created := columnInt64(createdCol, i)
		if created > info.IngestedAt {
			info.IngestedAt = created
		}
	}

	infos := make([]SourceInfo, 0, len(bySource))
	for _, info := range bySource {
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Source < infos[j].Source
	})
	return infos, nil
}

// Preview returns the first chunks of a source in document order.
func (s *Store) Preview(ctx context.Context, source string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 5
	}

	queryOpt := milvusclient.NewQueryOption(ChunkCollection).
		WithFilter(sourceFilter(source)).
		WithOutputFields(FieldID, FieldText, FieldChunkIndex, FieldPage).
		WithLimit(listQueryLimit)

	result, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for %q: %w", source, err)
	}

	idCol := result.GetColumn(FieldID)
	if idCol == nil || idCol.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
	}

	textCol := result.GetColumn(FieldText)
	indexCol := result.GetColumn(FieldChunkIndex)
	pageCol := result.GetColumn(FieldPage)

	chunks := make([]Chunk, 0, idCol.Len())
	for i := 0; i < idCol.Len(); i++ {
		id, err := idCol.GetAsString(i)
		if err != nil {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:         id,
			Text:       columnString(textCol, i),
			Source:     source,
			ChunkIndex: columnInt64(indexCol, i),
			Page:       columnInt64(pageCol, i),
		})
	}

	// Milvus does not guarantee query order.
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// DeleteSource removes every chunk of the given source. It returns
// ErrNotFound when the source had no chunks.
func (s *Store) DeleteSource(ctx context.Context, source string) (int64, error) {
	deleteOpt := milvusclient.NewDeleteOption(ChunkCollection).
		WithExpr(sourceFilter(source))
	res, err := s.client.Delete(ctx, deleteOpt)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %q: %w", source, err)
	}
	if res.DeleteCount == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, source)
	}

	logger.StoreInfo("Deleted %d chunks for %q", res.DeleteCount, source)
	return res.DeleteCount, nil
}

// CollectionStats aggregates source and chunk counts.
func (s *Store) CollectionStats(ctx context.Context) (*Stats, error) {
	infos, err := s.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Sources: len(infos)}
	for _, info := range infos {
		stats.TotalChunks += info.ChunkCount
	}
	return stats, nil
}

// Close closes the connection to Milvus.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// sourceFilter builds a boolean expression matching one source, with quotes
// and backslashes escaped so file names cannot break out of the literal.
func sourceFilter(source string) string {
	return fmt.Sprintf(`%s == "%s"`, FieldSource, escapeExpr(source))
}

func sourcesFilter(sources []string) string {
	quoted := make([]string, len(sources))
	for i, src := range sources {
		quoted[i] = fmt.Sprintf(`"%s"`, escapeExpr(src))
	}
	return fmt.Sprintf(`%s in [%s]`, FieldSource, strings.Join(quoted, ", "))
}

func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func columnString(col column.Column, i int) string {
	if col == nil || i >= col.Len() {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}

func columnInt64(col column.Column, i int) int64 {
	if col == nil || i >= col.Len() {
		return 0
	}
	v, err := col.GetAsInt64(i)
	if err != nil {
		return 0
	}
	return v
}
