package types

import (
	"errors"
	"time"
)

// Chunk is the unit of the vector index: a bounded span of text paired with
// its embedding. (ContentID, ChunkIndex) is unique; ChunkIndex values for a
// content id form a contiguous 0-based sequence. Chunks are never mutated in
// place - re-indexing a content id deletes the old set and inserts the new.
type Chunk struct {
	ContentID  string
	ChunkIndex int
	Text       string
	Type       ContentType
	SourcePath string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// Validate checks structural invariants before a chunk is persisted.
func (c *Chunk) Validate() error {
	if c.ContentID == "" {
		return errors.New("chunk content id cannot be empty")
	}
	if c.ChunkIndex < 0 {
		return errors.New("chunk index must be >= 0")
	}
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	return nil
}

// Meta returns the metadata value for key, or "" when absent.
func (c *Chunk) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
