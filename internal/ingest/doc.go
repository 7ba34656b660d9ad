// Package ingest turns source files into indexable content units and
// structural graph elements.
//
// An Ingester handles one family of file extensions. The built-in Go
// ingester parses source with go/ast and emits one content unit per
// top-level declaration, plus namespace/type/method nodes and the edges
// between them (Declares, Contains, Calls, Uses, Implements, Inherits).
// The markdown ingester emits the whole document as one unit.
//
// Files with no registered ingester are still indexable: the background
// indexer falls back to a single whole-file content unit, so the registry
// gates graph extraction, not indexing.
//
//	registry := ingest.DefaultRegistry()
//	ing, ok := registry.ForPath("internal/server/server.go")
//	if ok {
//	    result, err := ing.Ingest(path, src, repoPath)
//	    // result.Contents -> embedding pipeline
//	    // result.Nodes, result.Edges -> graph store
//	}
package ingest
