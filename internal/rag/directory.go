package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeatlas/internal/ingest"
	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/pkg/types"
)

// DefaultExcludes are glob patterns skipped by every directory walk unless
// the caller overrides them.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/bin/**",
	"**/obj/**",
	"**/*.min.js",
}

// DirectoryOptions control a directory indexing walk.
type DirectoryOptions struct {
	Include     []string // Doublestar globs against the normalized relative path; empty = all indexable files
	Exclude     []string // Defaults to DefaultExcludes when nil
	Recursive   bool
	Concurrency int // Parallel file indexers; defaults to 4
}

// DirectoryResult summarizes a completed walk. Graph holds the aggregated
// structural output of every ingester-processed file.
type DirectoryResult struct {
	FilesIndexed int
	FilesFailed  int
	Graph        ingest.Result
}

// IndexDirectory synchronously walks root and indexes every matching
// file. Per-file failures are logged and counted, never fatal: a single
// unreadable file must not abort the walk.
func (s *Store) IndexDirectory(ctx context.Context, root string, opts DirectoryOptions) (*DirectoryResult, error) {
	files, err := s.DiscoverFiles(root, opts)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	result := &DirectoryResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.indexOneFile(gctx, file, root)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Printf("failed to index %s: %v", file, err)
				result.FilesFailed++
				return nil
			}
			result.FilesIndexed++
			result.Graph.Nodes = append(result.Graph.Nodes, r.Nodes...)
			result.Graph.Edges = append(result.Graph.Edges, r.Edges...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// DiscoverFiles walks root and returns the files a directory index would
// process, in walk order. The background indexer uses this to record a
// job's total item count before processing begins.
func (s *Store) DiscoverFiles(root string, opts DirectoryOptions) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	excludes := opts.Exclude
	if excludes == nil {
		excludes = DefaultExcludes
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: log and keep walking
			s.logger.Printf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = pathutil.Normalize(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			// A trailing /** matches a directory's children, not the
			// directory itself, so probe with a synthetic child too
			if matchesAny(excludes, rel) || matchesAny(excludes, rel+"/_") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(excludes, rel) {
			return nil
		}
		if len(opts.Include) > 0 {
			if !matchesAny(opts.Include, rel) {
				return nil
			}
		} else if !s.indexable(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	return files, nil
}

// indexable reports whether a file would be indexed with no include
// patterns: anything with a registered ingester or a recognized text type.
func (s *Store) indexable(path string) bool {
	if s.registry != nil {
		if _, ok := s.registry.ForPath(path); ok {
			return true
		}
	}
	return ContentTypeForPath(path) != types.ContentTypeOther
}

func (s *Store) indexOneFile(ctx context.Context, path, root string) (*ingest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return s.IndexFileContent(ctx, path, data, pathutil.Normalize(root))
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
