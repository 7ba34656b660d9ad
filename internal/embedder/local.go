package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
)

const (
	ProviderLocal  = "local"
	LocalDimension = 384
)

// LocalProvider is a deterministic, offline embedder. Vectors are derived
// from repeated hashing of the input, so equal texts always embed equally
// and similar prefixes do not correlate. Used for tests and for running
// without any provider configured.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{
		model: "local-hash-embeddings",
		cache: cache,
	}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashVector(text, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(texts))
	for i, text := range texts {
		emb, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return embeddings, nil
}

// Healthy always succeeds - there is no external dependency.
func (l *LocalProvider) Healthy(ctx context.Context) error {
	return nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector expands a text into a unit-length vector by chaining SHA-256
// over the input.
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for i := 0; i < dim; i++ {
		if i%len(block) == 0 && i > 0 {
			block = sha256.Sum256(block[:])
		}
		vector[i] = float32(block[i%len(block)])/255.0 - 0.5
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vector {
			vector[i] /= norm
		}
	}

	return vector
}
