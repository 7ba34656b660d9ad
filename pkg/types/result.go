package types

// QueryResult is one ranked hit from a similarity query. Score is cosine
// similarity clamped to [0,1]; results are ordered by Score descending.
type QueryResult struct {
	Chunk Chunk
	Score float64
}
