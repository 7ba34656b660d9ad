package rag

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dshills/codeatlas/internal/chunker"
	"github.com/dshills/codeatlas/internal/embedder"
	"github.com/dshills/codeatlas/internal/ingest"
	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

// ErrNotIndexed is returned by directory stats when no chunk under the
// path exists, distinguishing "never indexed" from "zero matches".
var ErrNotIndexed = types.ErrNotIndexed

// embedBatchLimit keeps provider requests under the strictest batch cap.
const embedBatchLimit = 100

// Store is the retrieval engine: it chunks content, requests embeddings,
// persists chunk+vector rows, and answers similarity queries.
type Store struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	db       *storage.Store
	registry *ingest.Registry
	logger   *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Store) { s.chunker = c }
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a retrieval store over the given persistence and embedding
// layers. registry may be nil when ingester-aware indexing isn't needed.
func New(db *storage.Store, emb embedder.Embedder, registry *ingest.Registry, opts ...Option) *Store {
	s := &Store{
		chunker:  chunker.New(chunker.DefaultTargetSize, chunker.DefaultOverlap),
		embedder: emb,
		db:       db,
		registry: registry,
		logger:   log.New(os.Stderr, "[rag] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index chunks content, embeds every chunk in one provider call, and
// replaces all previously stored chunks for content.ID. Whitespace-only
// content deletes prior state and stores nothing.
func (s *Store) Index(ctx context.Context, content types.Content) error {
	if content.ID == "" {
		return fmt.Errorf("content has no id: %w", types.ErrEmptyContent)
	}

	chunks, err := s.buildChunks(ctx, []types.Content{content})
	if err != nil {
		return err
	}
	return s.db.ReplaceChunks(ctx, content.ID, chunks[content.ID])
}

// IndexBatch indexes several content items with a single embedding request
// for the whole batch. Chunk indexes are assigned per content id starting
// at 0, so unrelated content ids are safe in one call.
func (s *Store) IndexBatch(ctx context.Context, contents []types.Content) error {
	if len(contents) == 0 {
		return nil
	}
	for _, c := range contents {
		if c.ID == "" {
			return fmt.Errorf("content has no id: %w", types.ErrEmptyContent)
		}
	}

	sets, err := s.buildChunks(ctx, contents)
	if err != nil {
		return err
	}
	return s.db.ReplaceChunkSets(ctx, sets)
}

// IndexFileContent indexes one file's bytes. A registered ingester
// produces symbol-aware units; otherwise the whole file is indexed as one
// content item with its type guessed from the extension. The returned
// result carries any graph structure the ingester emitted, for callers
// that also populate the structural index.
func (s *Store) IndexFileContent(ctx context.Context, path string, data []byte, repositoryPath string) (*ingest.Result, error) {
	normalized := pathutil.Normalize(path)

	var result *ingest.Result
	if s.registry != nil {
		if ing, ok := s.registry.ForPath(path); ok {
			r, err := ing.Ingest(path, data, repositoryPath)
			if err != nil || r == nil || len(r.Contents) == 0 {
				if err != nil {
					s.logger.Printf("ingester failed for %s, falling back to generic chunking: %v", normalized, err)
				}
			} else {
				result = r
			}
		}
	}

	if result == nil {
		result = &ingest.Result{Contents: []types.Content{{
			ID:         normalized,
			Text:       string(data),
			Type:       ContentTypeForPath(path),
			SourcePath: normalized,
		}}}
	}

	sets, err := s.buildChunks(ctx, result.Contents)
	if err != nil {
		return nil, err
	}
	if err := s.db.ReplaceSourceChunks(ctx, normalized, sets); err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes all chunks for contentID and reports whether anything
// was removed.
func (s *Store) Remove(ctx context.Context, contentID string) (bool, error) {
	deleted, err := s.db.DeleteChunks(ctx, contentID)
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// RemovePath deletes every chunk stored under the normalized file path,
// covering both whole-file and symbol-level content ids.
func (s *Store) RemovePath(ctx context.Context, path string) (bool, error) {
	deleted, err := s.db.DeleteBySourcePath(ctx, path)
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// GetStats returns chunk and document counts for the whole index.
func (s *Store) GetStats(ctx context.Context) (*storage.ChunkStats, error) {
	return s.db.Stats(ctx, "")
}

// GetDirectoryStats returns counts scoped to a source-path prefix.
// Returns ErrNotIndexed when nothing under the path has been indexed.
func (s *Store) GetDirectoryStats(ctx context.Context, path string) (*storage.ChunkStats, error) {
	stats, err := s.db.Stats(ctx, path)
	if err != nil {
		return nil, err
	}
	if stats.ChunkCount == 0 {
		return nil, fmt.Errorf("%s: %w", pathutil.Normalize(path), ErrNotIndexed)
	}
	return stats, nil
}

// IsHealthy reports whether the backing store is reachable and the
// configured embedding model is confirmed available. Both must hold.
func (s *Store) IsHealthy(ctx context.Context) bool {
	if err := s.db.Ping(ctx); err != nil {
		return false
	}
	return s.embedder.Healthy(ctx) == nil
}

// buildChunks splits each content item and embeds every produced chunk,
// returning per-content-id chunk sets with contiguous 0-based indexes.
func (s *Store) buildChunks(ctx context.Context, contents []types.Content) (map[string][]types.Chunk, error) {
	sets := make(map[string][]types.Chunk, len(contents))
	var texts []string
	var flat []*types.Chunk

	for _, content := range contents {
		pieces := s.chunker.Split(content.Text, content.Type)
		sets[content.ID] = make([]types.Chunk, 0, len(pieces))
		for i, piece := range pieces {
			chunk := types.Chunk{
				ContentID:  content.ID,
				ChunkIndex: i,
				Text:       piece,
				Type:       content.Type,
				SourcePath: content.SourcePath,
				Metadata:   cloneMetadata(content.Metadata),
			}
			sets[content.ID] = append(sets[content.ID], chunk)
			idx := len(sets[content.ID]) - 1
			flat = append(flat, &sets[content.ID][idx])
			texts = append(texts, piece)
		}
	}

	if len(texts) == 0 {
		return sets, nil
	}

	embeddings, err := s.embedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
	}
	for i, emb := range embeddings {
		flat[i].Embedding = emb.Vector
	}
	return sets, nil
}

// embedTexts batches provider calls to stay under the batch cap.
func (s *Store) embedTexts(ctx context.Context, texts []string) ([]*embedder.Embedding, error) {
	out := make([]*embedder.Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchLimit {
		end := start + embedBatchLimit
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortByScore orders scored chunks by descending similarity.
func sortByScore(results []types.QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
