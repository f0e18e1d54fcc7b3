package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // openai-compatible or ollama
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type CompletionConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Key         string        `yaml:"key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type VectorConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

type RAGConfig struct {
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	EmbedWorkers   int `yaml:"embed_workers"`
	StoreBatchSize int `yaml:"store_batch_size"`
	MinTextLength  int `yaml:"min_text_length"`
	PreviewLength  int `yaml:"preview_length"`
	ProbeLimit     int `yaml:"probe_limit"`
}

type SuggestConfig struct {
	MinResults     int     `yaml:"min_results"`
	MinScore       float32 `yaml:"min_score"`
	TopK           int     `yaml:"top_k"`
	PartitionLimit int     `yaml:"partition_limit"`
	MaxQueryLength int     `yaml:"max_query_length"`
}

type Config struct {
	mu sync.RWMutex

	Database   DatabaseConfig   `yaml:"database"`
	EmbedLLM   LLMConfig        `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Vector     VectorConfig     `yaml:"vector"`
	RAG        RAGConfig        `yaml:"rag"`
	Suggest    SuggestConfig    `yaml:"suggest"`
}

const (
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 200
	defaultEmbedWorkers   = 4
	defaultStoreBatchSize = 100
	defaultMinTextLength  = 10
	defaultPreviewLength  = 200
	defaultProbeLimit     = 1000
	defaultTimeout        = 30 * time.Second
)

func LoadConfig(path string) (*Config, error) {
	// .env values take effect before the YAML expansion below; a missing
	// .env file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config usable without a YAML file, for tests and
// in-memory runs.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = c.RAG.ChunkSize / 2
	}
	if c.RAG.EmbedWorkers <= 0 {
		c.RAG.EmbedWorkers = defaultEmbedWorkers
	}
	if c.RAG.StoreBatchSize <= 0 {
		c.RAG.StoreBatchSize = defaultStoreBatchSize
	}
	if c.RAG.MinTextLength <= 0 {
		c.RAG.MinTextLength = defaultMinTextLength
	}
	if c.RAG.PreviewLength <= 0 {
		c.RAG.PreviewLength = defaultPreviewLength
	}
	if c.RAG.ProbeLimit <= 0 {
		c.RAG.ProbeLimit = defaultProbeLimit
	}
	if c.EmbedLLM.Timeout <= 0 {
		c.EmbedLLM.Timeout = defaultTimeout
	}
	if c.Completion.Timeout <= 0 {
		c.Completion.Timeout = defaultTimeout
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "documents"
	}
	if c.Suggest.MinResults <= 0 {
		c.Suggest.MinResults = 2
	}
	if c.Suggest.MinScore <= 0 {
		c.Suggest.MinScore = 0.7
	}
	if c.Suggest.TopK <= 0 {
		c.Suggest.TopK = 3
	}
	if c.Suggest.PartitionLimit <= 0 {
		c.Suggest.PartitionLimit = 2
	}
	if c.Suggest.MaxQueryLength <= 0 {
		c.Suggest.MaxQueryLength = 500
	}
}

// Reconfigure swaps the mutable sections under lock. Services hold this
// handle and read through Snapshot, so there is no ambient global to poke
// mid-call.
func (c *Config) Reconfigure(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
	c.applyDefaults()
}

// Snapshot returns a copy of the current settings, safe to read while a
// concurrent Reconfigure runs.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Database:   c.Database,
		EmbedLLM:   c.EmbedLLM,
		Completion: c.Completion,
		Vector:     c.Vector,
		RAG:        c.RAG,
		Suggest:    c.Suggest,
	}
}

func (c *Config) Validate() error {
	s := c.Snapshot()
	if s.EmbedLLM.Model == "" {
		return fmt.Errorf("embedding model is required")
	}
	return nil
}
