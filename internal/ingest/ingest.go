package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/codeatlas/pkg/types"
)

// Result is everything an ingester extracted from one file: the content
// units to embed, plus any structural nodes and edges.
type Result struct {
	Contents []types.Content
	Nodes    []types.GraphNode
	Edges    []types.GraphEdge
}

// Ingester turns one source file into indexable content and, for code,
// graph structure. Implementations must be safe for concurrent use: the
// background indexer calls Ingest from multiple workers.
type Ingester interface {
	// Extensions returns the file extensions this ingester handles,
	// lowercase with leading dot (".go", ".md").
	Extensions() []string

	// Ingest extracts content units and graph structure from src.
	// repositoryPath scopes any emitted nodes to their repository.
	Ingest(path string, src []byte, repositoryPath string) (*Result, error)
}

// Registry maps file extensions to ingesters. Registration is typically
// done at startup but is safe at any time.
type Registry struct {
	mu        sync.RWMutex
	ingesters map[string]Ingester
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ingesters: make(map[string]Ingester)}
}

// DefaultRegistry returns a registry with the built-in ingesters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGoIngester())
	r.Register(NewMarkdownIngester())
	return r
}

// Register adds an ingester for each extension it claims, replacing any
// previous registration for those extensions.
func (r *Registry) Register(ing Ingester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range ing.Extensions() {
		r.ingesters[strings.ToLower(ext)] = ing
	}
}

// ForPath returns the ingester registered for path's extension, if any.
func (r *Registry) ForPath(path string) (Ingester, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	ing, ok := r.ingesters[ext]
	return ing, ok
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.ingesters))
	for ext := range r.ingesters {
		exts = append(exts, ext)
	}
	return exts
}

// unitID builds a stable content id for a unit extracted from a file,
// shaped path#kind:symbol. The kind keeps same-named symbols of different
// kinds (a type and a function surviving a partial parse, say) from
// colliding. Whole-file units use the normalized path alone.
func unitID(normalizedPath, kind, symbol string) string {
	if symbol == "" {
		return normalizedPath
	}
	return fmt.Sprintf("%s#%s:%s", normalizedPath, kind, symbol)
}
