// Package storage provides SQLite-based persistence for indexed content
// chunks and the structural code graph.
//
// The storage layer manages:
//   - Content chunks with vector embeddings
//   - Graph nodes (types, members, namespaces, projects)
//   - Graph edges (implements, inherits, calls, contains, ...)
//   - Schema migrations
//
// # Database Schema
//
// Tables:
//   - schema_migrations: Applied migration versions
//   - chunks: Content chunks keyed by (content_id, chunk_index)
//   - graph_nodes: Structural nodes keyed by deterministic id
//   - graph_edges: Typed relationships between nodes
//
// # Basic Usage
//
//	store, err := storage.New("~/.codeatlas/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	// Replace all chunks for a piece of content atomically
//	err = store.ReplaceChunks(ctx, contentID, chunks)
//
//	// Vector similarity search
//	results, err := store.SearchSimilar(ctx, queryVector, 10, storage.ChunkFilter{
//	    ContentTypes: []types.ContentType{types.ContentCode},
//	})
//	for _, r := range results {
//	    fmt.Printf("%s: %.3f\n", r.Chunk.SourcePath, r.Score)
//	}
//
// # Re-indexing Semantics
//
// ReplaceChunks deletes every existing chunk for a content id and inserts
// the new set in a single transaction. Re-indexing the same content is
// therefore idempotent: readers never observe a mix of old and new chunks.
//
// # Graph Operations
//
// SaveGraph upserts nodes and edges in one transaction. Traversal queries
// (FindImplementations, FindCallers, TypeMembers, ...) match names
// case-insensitively against both simple and fully qualified names.
// ClearRepository removes a repository's subgraph, edges first.
//
// # Build Tags
//
// The package supports two driver configurations:
//
// CGO build (cgo_sqlite tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//   - Requires a C compiler
//
//     CGO_ENABLED=1 go build -tags "cgo_sqlite"
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build
//
// Vector similarity is computed in Go in both configurations, so scores
// are identical across drivers.
package storage
