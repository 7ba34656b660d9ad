package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/pkg/types"
)

// ChunkFilter narrows similarity search and stats queries.
type ChunkFilter struct {
	ContentTypes []types.ContentType // Empty = all types
	PathPrefix   string              // Normalized source-path prefix; empty = all paths
	MinScore     float64             // Results below this similarity are dropped
}

// ScoredChunk pairs a stored chunk with its similarity to a query vector.
type ScoredChunk struct {
	Chunk types.Chunk
	Score float64
}

// ChunkStats summarizes the vector index, optionally scoped to a path prefix.
type ChunkStats struct {
	ChunkCount    int
	DocumentCount int // Distinct content ids
}

// ReplaceChunks atomically replaces all chunks stored for contentID with
// the given set. An empty set just deletes. This is what makes re-indexing
// idempotent: no chunk from an earlier version of the content survives.
func (s *Store) ReplaceChunks(ctx context.Context, contentID string, chunks []types.Chunk) error {
	return s.ReplaceChunkSets(ctx, map[string][]types.Chunk{contentID: chunks})
}

// ReplaceChunkSets performs ReplaceChunks for several content ids in one
// transaction. Safe for multiple unrelated content ids in one call.
func (s *Store) ReplaceChunkSets(ctx context.Context, sets map[string][]types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Stable order keeps write patterns deterministic
	ids := make([]string, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, contentID := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE content_id = ?", contentID); err != nil {
			return fmt.Errorf("failed to delete chunks for %s: %w", contentID, err)
		}
		for i := range sets[contentID] {
			if err := insertChunk(ctx, tx, &sets[contentID][i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk %s[%d]: %w", chunk.ContentID, chunk.ChunkIndex, err)
	}

	var metadata []byte
	if len(chunk.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (content_id, chunk_index, text, content_type, source_path, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ContentID, chunk.ChunkIndex, chunk.Text, string(chunk.Type),
		chunk.SourcePath, serializeVector(chunk.Embedding), metadata, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s[%d]: %w", chunk.ContentID, chunk.ChunkIndex, err)
	}
	return nil
}

// ReplaceSourceChunks atomically replaces every chunk whose source path is
// sourcePath with the given content sets. Unlike ReplaceChunkSets, content
// ids present in an earlier version of the file but absent from sets are
// removed too, so a re-ingested file never leaves orphaned units behind.
func (s *Store) ReplaceSourceChunks(ctx context.Context, sourcePath string, sets map[string][]types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	normalized := pathutil.Normalize(sourcePath)
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", normalized); err != nil {
		return fmt.Errorf("failed to delete chunks for source %s: %w", normalized, err)
	}

	ids := make([]string, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, contentID := range ids {
		for i := range sets[contentID] {
			if err := insertChunk(ctx, tx, &sets[contentID][i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit source chunk replacement: %w", err)
	}
	return nil
}

// DeleteBySourcePath removes every chunk stored for the normalized source
// path, returning the number of rows deleted.
func (s *Store) DeleteBySourcePath(ctx context.Context, sourcePath string) (int64, error) {
	normalized := pathutil.Normalize(sourcePath)
	result, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", normalized)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for source %s: %w", normalized, err)
	}
	return result.RowsAffected()
}

// DeleteChunks removes all chunks for contentID, returning the number of
// rows deleted. Zero with a nil error means nothing was stored.
func (s *Store) DeleteChunks(ctx context.Context, contentID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE content_id = ?", contentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", contentID, err)
	}
	return result.RowsAffected()
}

// CountChunks returns the number of chunks stored for contentID.
func (s *Store) CountChunks(ctx context.Context, contentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE content_id = ?", contentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for %s: %w", contentID, err)
	}
	return count, nil
}

// ListChunks returns the chunks for contentID ordered by chunk index.
func (s *Store) ListChunks(ctx context.Context, contentID string) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, chunk_index, text, content_type, source_path, embedding, metadata, created_at
		FROM chunks WHERE content_id = ? ORDER BY chunk_index`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for %s: %w", contentID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// SearchSimilar ranks stored chunks by cosine similarity to queryVector,
// descending, after applying the filter. Type and path filters are pushed
// into SQL; similarity and the MinScore threshold are computed in Go.
func (s *Store) SearchSimilar(ctx context.Context, queryVector []float32, filter ChunkFilter) ([]ScoredChunk, error) {
	query := `
		SELECT content_id, chunk_index, text, content_type, source_path, embedding, metadata, created_at
		FROM chunks WHERE embedding IS NOT NULL`
	var args []interface{}

	if len(filter.ContentTypes) > 0 {
		query += " AND content_type IN ("
		for i, ct := range filter.ContentTypes {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, string(ct))
		}
		query += ")"
	}

	if filter.PathPrefix != "" {
		query += " AND source_path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(pathutil.Normalize(filter.PathPrefix))+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(queryVector) {
			continue // Dimension mismatch, skip
		}
		score := clampScore(cosineSimilarity(queryVector, chunk.Embedding))
		if score < filter.MinScore {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored, nil
}

// Stats returns chunk and distinct-document counts, optionally scoped to a
// normalized source-path prefix.
func (s *Store) Stats(ctx context.Context, pathPrefix string) (*ChunkStats, error) {
	query := "SELECT COUNT(*), COUNT(DISTINCT content_id) FROM chunks"
	var args []interface{}
	if pathPrefix != "" {
		query += " WHERE source_path LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(pathutil.Normalize(pathPrefix))+"%")
	}

	var stats ChunkStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.ChunkCount, &stats.DocumentCount); err != nil {
		return nil, fmt.Errorf("failed to query chunk stats: %w", err)
	}
	return &stats, nil
}

func scanChunks(rows *sql.Rows) ([]types.Chunk, error) {
	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var contentType string
		var sourcePath sql.NullString
		var embedding []byte
		var metadata sql.NullString

		if err := rows.Scan(&chunk.ContentID, &chunk.ChunkIndex, &chunk.Text, &contentType,
			&sourcePath, &embedding, &metadata, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		chunk.Type = types.ContentType(contentType)
		if sourcePath.Valid {
			chunk.SourcePath = sourcePath.String
		}
		chunk.Embedding = deserializeVector(embedding)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}

		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// escapeLike escapes LIKE wildcards so a path prefix is matched literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
