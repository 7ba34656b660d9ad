// Package mcp implements the Model Context Protocol (MCP) server for CodeAtlas.
//
// The server exposes the indexing and retrieval engine to AI coding
// assistants over stdio:
//   - index_directory: queue a background job indexing a directory tree,
//     optionally registering it for live file-watching
//   - job_status / cancel_job: poll and cancel background jobs
//   - query: semantic similarity search with filters and file prioritization
//   - graph_search: structural lookups (implementations, derived types,
//     callers, dependencies, members, namespace types, project references,
//     fuzzy node search)
//   - enrich_prompt: turn free text into graph context for an LLM prompt
//   - get_status: store statistics, indexer queue state and provider health
//   - remove_content: drop indexed chunks by content id or file path
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; all logging goes to stderr.
//
// # Basic Usage
//
// Start the server and point an MCP client at it:
//
//	codeatlas
//
// Then, from the client:
//
//	Request:
//	{
//	  "name": "index_directory",
//	  "arguments": {"path": "/path/to/project"}
//	}
//
//	Response:
//	{
//	  "job_id": "2f1f...",
//	  "state": "queued"
//	}
//
// Poll the job until its state is terminal:
//
//	Request:
//	{
//	  "name": "job_status",
//	  "arguments": {"job_id": "2f1f..."}
//	}
//
// # Error Handling
//
// Parameter problems return JSON-RPC error code -32602 with a data payload
// naming the offending parameter. Routine conditions (unknown job id,
// nothing indexed under a prefix) are reported inside a successful result,
// not as protocol errors, since polling code expects them.
package mcp
