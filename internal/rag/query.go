package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/pkg/types"
)

// DefaultTopK bounds query results when the caller doesn't say.
const DefaultTopK = 10

// QueryOptions filter and shape a similarity query.
type QueryOptions struct {
	TopK            int
	ContentTypes    []types.ContentType
	PathPrefix      string
	MinScore        float64
	PrioritizeFiles []string // File names or path fragments whose chunks get reserved slots
}

// Query embeds the query text and returns the topK most similar chunks,
// score descending. With PrioritizeFiles set, up to max(topK/2, 3) result
// slots are reserved for chunks from matching files so small important
// files are never drowned out by chunk-count from larger ones.
func (s *Store) Query(ctx context.Context, text string, opts QueryOptions) ([]types.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text is empty: %w", types.ErrEmptyContent)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := s.db.SearchSimilar(ctx, emb.Vector, storage.ChunkFilter{
		ContentTypes: opts.ContentTypes,
		PathPrefix:   opts.PathPrefix,
		MinScore:     opts.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]types.QueryResult, len(scored))
	for i, sc := range scored {
		results[i] = types.QueryResult{Chunk: sc.Chunk, Score: sc.Score}
	}

	if len(opts.PrioritizeFiles) > 0 {
		return selectPrioritized(results, topK, opts.PrioritizeFiles), nil
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// selectPrioritized partitions results by prioritized-file membership,
// reserves up to max(topK/2, 3) slots for the prioritized group, backfills
// with the best non-prioritized hits, and returns the union sorted by
// score descending.
func selectPrioritized(results []types.QueryResult, topK int, files []string) []types.QueryResult {
	var prioritized, rest []types.QueryResult
	for _, r := range results {
		if matchesAnyFile(r.Chunk.SourcePath, files) {
			prioritized = append(prioritized, r)
		} else {
			rest = append(rest, r)
		}
	}

	reserved := topK / 2
	if reserved < 3 {
		reserved = 3
	}
	if reserved > topK {
		reserved = topK
	}
	if reserved > len(prioritized) {
		reserved = len(prioritized)
	}

	out := make([]types.QueryResult, 0, topK)
	out = append(out, prioritized[:reserved]...)
	for _, r := range rest {
		if len(out) >= topK {
			break
		}
		out = append(out, r)
	}
	// Backfill with remaining prioritized results if the rest ran short
	for _, r := range prioritized[reserved:] {
		if len(out) >= topK {
			break
		}
		out = append(out, r)
	}

	sortByScore(out)
	return out
}

// matchesAnyFile reports whether sourcePath belongs to one of the
// prioritized files: exact filename, path suffix, or path-segment match.
func matchesAnyFile(sourcePath string, files []string) bool {
	if sourcePath == "" {
		return false
	}
	path := pathutil.Normalize(sourcePath)
	base := pathutil.Base(path)

	for _, file := range files {
		f := pathutil.Normalize(file)
		if f == "" {
			continue
		}
		if base == f || strings.HasSuffix(path, f) {
			return true
		}
		for _, seg := range pathutil.Segments(path) {
			if seg == f {
				return true
			}
		}
	}
	return false
}

// ContentTypeForPath guesses a content type from a file extension, for
// files indexed without an ingester.
func ContentTypeForPath(path string) types.ContentType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".cs", ".js", ".ts", ".py", ".java", ".rb", ".rs", ".c", ".h", ".cpp", ".sql":
		return types.ContentTypeCode
	case ".md", ".markdown":
		return types.ContentTypeMarkdown
	case ".txt":
		return types.ContentTypePlainText
	case ".rst", ".adoc":
		return types.ContentTypeDocumentation
	default:
		return types.ContentTypeOther
	}
}
