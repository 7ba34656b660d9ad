// Package rag is the retrieval engine: it chunks content, requests
// embeddings, persists chunk+vector rows, and answers nearest-neighbor
// queries with filtering and prioritization.
//
// # Indexing
//
// All indexing paths converge on the same chunk -> embed -> store
// pipeline. Index and IndexBatch take pre-built content; IndexDirectory
// walks a tree with doublestar include/exclude globs, preferring a
// registered ingester per file and falling back to generic chunking.
// Re-indexing a content id fully replaces its prior chunk set.
//
//	store := rag.New(db, emb, ingest.DefaultRegistry())
//	err := store.Index(ctx, types.Content{
//	    ID:   "/src/main.go",
//	    Text: source,
//	    Type: types.ContentTypeCode,
//	})
//
// # Querying
//
// Query embeds the text and ranks stored chunks by cosine similarity,
// descending, clamped to [0,1]. PrioritizeFiles reserves up to
// max(topK/2, 3) result slots for chunks from named files so a small
// important file is never drowned out by a large one's chunk count.
//
//	results, err := store.Query(ctx, "how are requests authenticated?", rag.QueryOptions{
//	    TopK:            10,
//	    MinScore:        0.3,
//	    PrioritizeFiles: []string{"auth.go"},
//	})
package rag
