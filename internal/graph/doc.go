// Package graph is the structural index service: typed code symbols and
// the relationships between them, with traversal queries layered on top.
//
// Mutations follow a staged pattern: AddNode and AddEdge buffer in
// memory, and SaveChanges commits the whole pending set in a single
// transaction. A failed save retains the buffer for retry; Discard drops
// it. All traversal queries accept an optional repository path to scope
// results, and all name matching is case-insensitive.
package graph
