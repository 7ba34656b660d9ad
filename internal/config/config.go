package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/codeatlas/internal/chunker"
	"github.com/dshills/codeatlas/internal/embedder"
	"github.com/dshills/codeatlas/internal/jobs"
	"github.com/dshills/codeatlas/internal/watch"
)

// DefaultFileName is the config file probed in the working directory and
// its ancestors when no explicit path is given.
const DefaultFileName = ".codeatlas.yaml"

// Config is the full runtime configuration.
type Config struct {
	Database  string          `yaml:"database"` // sqlite path; empty means the default under the user home
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Watch     WatchConfig     `yaml:"watch"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // local, ollama, openai
	Model     string `yaml:"model,omitempty"`
	Host      string `yaml:"host,omitempty"`    // ollama only
	APIKey    string `yaml:"api_key,omitempty"` // openai only; OPENAI_API_KEY wins
	CacheSize int    `yaml:"cache_size,omitempty"`
}

// ChunkingConfig controls how text is split before embedding.
type ChunkingConfig struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
}

// IndexingConfig controls the background indexer and directory walks.
type IndexingConfig struct {
	Workers   int      `yaml:"workers"`
	QueueSize int      `yaml:"queue_size"`
	Include   []string `yaml:"include,omitempty"` // doublestar globs
	Exclude   []string `yaml:"exclude,omitempty"`
}

// WatchConfig controls the incremental file watcher.
type WatchConfig struct {
	Enabled    bool          `yaml:"enabled"`
	DebounceMs int           `yaml:"debounce_ms"`
	Debounce   time.Duration `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: embedder.ProviderLocal,
		},
		Chunking: ChunkingConfig{
			TargetSize: chunker.DefaultTargetSize,
			Overlap:    chunker.DefaultOverlap,
		},
		Indexing: IndexingConfig{
			Workers:   jobs.DefaultWorkers,
			QueueSize: jobs.DefaultQueueSize,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: watch.DefaultDebounce,
		},
	}
}

// Load reads the config file at path, layers it over the defaults, then
// applies environment overrides. An empty path searches for DefaultFileName
// from the working directory upward; not finding one is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile walks up from the working directory looking for
// DefaultFileName. Returns "" when none exists.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// applyEnv layers environment variables over file values. Env wins so
// deployments can override a checked-in file without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("CODEATLAS_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embedding.Host = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v, ok := envInt("CODEATLAS_WORKERS"); ok {
		c.Indexing.Workers = v
	}
	if v, ok := envInt("CODEATLAS_QUEUE_SIZE"); ok {
		c.Indexing.QueueSize = v
	}
	if v, ok := envInt("CODEATLAS_DEBOUNCE_MS"); ok {
		c.Watch.DebounceMs = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Config) normalize() {
	if c.Watch.DebounceMs > 0 {
		c.Watch.Debounce = time.Duration(c.Watch.DebounceMs) * time.Millisecond
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = watch.DefaultDebounce
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = jobs.DefaultWorkers
	}
	if c.Indexing.QueueSize <= 0 {
		c.Indexing.QueueSize = jobs.DefaultQueueSize
	}
	if c.Chunking.TargetSize <= 0 {
		c.Chunking.TargetSize = chunker.DefaultTargetSize
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = chunker.DefaultOverlap
	}
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case embedder.ProviderLocal, embedder.ProviderOllama, embedder.ProviderOpenAI, "":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Chunking.Overlap >= c.Chunking.TargetSize {
		return fmt.Errorf("chunk overlap %d must be smaller than target size %d",
			c.Chunking.Overlap, c.Chunking.TargetSize)
	}
	return nil
}

// EmbedderConfig maps the embedding section onto the provider factory's
// config.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		Host:      c.Embedding.Host,
		CacheSize: c.Embedding.CacheSize,
	}
}

// DatabasePath resolves the sqlite file location, defaulting to
// ~/.codeatlas/index.db and creating the parent directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database != "" {
		return c.Database, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".codeatlas")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return filepath.Join(dir, "index.db"), nil
}
