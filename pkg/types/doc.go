// Package types provides shared type definitions for the CodeAtlas engine.
//
// This package defines the domain types used across the indexing and
// retrieval subsystems: content and chunks for the vector index, nodes and
// edges for the structural graph index, background job records, and
// file-change events.
//
// # Core Types
//
// Content is a unit of indexable text keyed by a stable content id:
//
//	content := types.Content{
//	    ID:   "src/auth/login.go",
//	    Text: source,
//	    Type: types.ContentTypeCode,
//	}
//
// Chunk pairs a bounded span of text with its embedding. (ContentID,
// ChunkIndex) is unique and re-indexing a content id replaces its chunk set
// wholesale, which makes indexing idempotent:
//
//	chunk := types.Chunk{
//	    ContentID:  "src/auth/login.go",
//	    ChunkIndex: 0,
//	    Text:       section,
//	    Metadata:   map[string]string{types.MetaSymbol: "Login"},
//	}
//
// # Graph Types
//
// GraphNode and GraphEdge model typed code symbols and their typed,
// directed relationships. Edge direction carries meaning - Implements
// points from implementor to interface, Calls from caller to callee:
//
//	edge := types.GraphEdge{
//	    EdgeType: types.EdgeImplements,
//	    SourceID: handler.ID, // implementor
//	    TargetID: iface.ID,   // interface
//	}
//
// # Background Jobs
//
// IndexJob tracks one background indexing run through the state machine
// Queued -> Processing -> {Completed, Failed, Cancelled}. Per-file failures
// increment FailedItems without failing the job; JobFailed is reserved for
// whole-job failures such as an unreadable root directory.
//
// # Metadata
//
// Chunk and node metadata are open string maps because ingesters are
// extensible and introduce new keys. The Meta* constants document the keys
// the built-in ingesters emit.
package types
