package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	Host      string // Ollama only
	CacheSize int
}

// NewFromEnv creates an embedder from environment variables.
// Priority:
//  1. CODEATLAS_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present -> openai
//  3. OLLAMA_HOST present -> ollama
//  4. local
func NewFromEnv() (Embedder, error) {
	provider := strings.ToLower(os.Getenv(EnvProvider))
	openaiKey := os.Getenv(EnvOpenAIAPIKey)
	ollamaHost := os.Getenv(EnvOllamaHost)

	cache := NewCache(10000)

	if provider != "" {
		switch provider {
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, cache)
		case ProviderOllama:
			return NewOllamaProvider(ollamaHost, "", cache), nil
		case ProviderLocal:
			return NewLocalProvider(cache), nil
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, cache)
	}
	if ollamaHost != "" {
		return NewOllamaProvider(ollamaHost, "", cache), nil
	}

	return NewLocalProvider(cache), nil
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.Host, cfg.Model, cache), nil
	case ProviderLocal, "":
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
