package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.EmbedWorkers)
	assert.Equal(t, 100, cfg.RAG.StoreBatchSize)
	assert.Equal(t, 1000, cfg.RAG.ProbeLimit)
	assert.Equal(t, "documents", cfg.Vector.Collection)
	assert.Equal(t, 30*time.Second, cfg.EmbedLLM.Timeout)

	assert.Equal(t, 2, cfg.Suggest.MinResults)
	assert.InDelta(t, 0.7, cfg.Suggest.MinScore, 1e-6)
	assert.Equal(t, 3, cfg.Suggest.TopK)
	assert.Equal(t, 500, cfg.Suggest.MaxQueryLength)
}

func TestLoadConfigFromYAML(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	raw := `database:
  url: postgres://localhost:5432/rag
  password: ${TEST_DB_PASSWORD}
embedding:
  provider: ollama
  model: nomic-embed-text
completion:
  model: gpt-4o-mini
  temperature: 0.4
rag:
  chunk_size: 512
  chunk_overlap: 64
vector:
  path: ./data/vectors
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/rag", cfg.Database.URL)
	assert.Equal(t, "s3cret", cfg.Database.Password, "env references expand")
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, 512, cfg.RAG.ChunkSize)
	assert.Equal(t, 64, cfg.RAG.ChunkOverlap)
	// omitted sections still get defaults
	assert.Equal(t, 100, cfg.RAG.StoreBatchSize)
	assert.Equal(t, "documents", cfg.Vector.Collection)
	assert.Equal(t, 2, cfg.Suggest.MinResults)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOverlapClampedBelowChunkSize(t *testing.T) {
	raw := `rag:
  chunk_size: 100
  chunk_overlap: 100
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
}

func TestReconfigureAndSnapshot(t *testing.T) {
	cfg := Default()
	before := cfg.Snapshot()

	cfg.Reconfigure(func(c *Config) {
		c.Suggest.MinScore = 0.8
		c.RAG.StoreBatchSize = 0 // reset back to the default
	})

	after := cfg.Snapshot()
	assert.InDelta(t, 0.8, after.Suggest.MinScore, 1e-6)
	assert.Equal(t, 100, after.RAG.StoreBatchSize, "defaults re-applied after reconfigure")
	assert.InDelta(t, 0.7, before.Suggest.MinScore, 1e-6, "snapshots are copies")
}

func TestValidateRequiresEmbeddingModel(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Reconfigure(func(c *Config) { c.EmbedLLM.Model = "nomic-embed-text" })
	assert.NoError(t, cfg.Validate())
}
