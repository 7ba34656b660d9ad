package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	ProviderOllama = "ollama"

	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaHost  = "http://localhost:11434"
	OllamaDimension    = 768
)

// OllamaProvider implements Embedder against a local Ollama server.
type OllamaProvider struct {
	host       string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an Ollama embedder. Empty host falls back to
// OLLAMA_HOST, then to the local default.
func NewOllamaProvider(host, model string, cache *Cache) *OllamaProvider {
	if host == "" {
		host = os.Getenv(EnvOllamaHost)
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	return &OllamaProvider{
		host:      host,
		model:     model,
		dimension: OllamaDimension,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		cache: cache,
	}
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	embs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return embs[0], nil
}

// EmbedBatch sends all texts in a single /api/embed call. Ollama's batch
// endpoint preserves input order in the response.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	if o.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(texts[i])
			emb.Hash = hash
			o.cache.Set(hash, emb)
		}
	}

	return embeddings, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"input": texts,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Embeddings))
	}

	embeddings := make([]*Embedding, len(apiResp.Embeddings))
	for i, vec := range apiResp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  ProviderOllama,
			Model:     o.model,
		}
	}

	return embeddings, nil
}

// Healthy checks the server is up and the configured model is pulled, via
// the /api/tags model listing.
func (o *OllamaProvider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProviderFailed, resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == o.model || m.Name == o.model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s not pulled", ErrModelUnavailable, o.model)
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
