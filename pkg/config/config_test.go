package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedder:
  provider: "hash"
  dimension: 256
  batch_size: 16

store:
  backend: "pgvector"
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 256

processor:
  chunk_size: 500
  chunk_overlap: 0
  trim_space: true

pipeline:
  pdf_dir: "papers"
  top_k: 5
  page_separator: "\n\n"

ui:
  progress: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "hash", config.Embedder.Provider)
	assert.Equal(t, 256, config.Embedder.Dimension)
	assert.Equal(t, 16, config.Embedder.BatchSize)
	assert.Equal(t, "pgvector", config.Store.Backend)
	assert.Equal(t, "postgres://localhost:5432/test", config.Store.URL)
	assert.Equal(t, "test_chunks", config.Store.TableName)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 0, config.Processor.ChunkOverlap)
	assert.True(t, config.Processor.TrimSpace)
	assert.Equal(t, "papers", config.Pipeline.PDFDir)
	assert.Equal(t, 5, config.Pipeline.TopK)
	assert.Equal(t, "\n\n", config.Pipeline.PageSeparator)
	assert.False(t, config.UI.Progress)

	// Unset values fall back to defaults
	assert.Equal(t, "vector_db", config.Store.Location)
	assert.Equal(t, "What is the main topic of the documents?", config.Pipeline.Query)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.Embedder.Provider)
	assert.Equal(t, "all-minilm", config.Embedder.Model)
	assert.Equal(t, "sqlite", config.Store.Backend)
	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 200, config.Processor.ChunkOverlap)
	assert.Equal(t, 3, config.Pipeline.TopK)
	assert.True(t, config.UI.Progress)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_OverlapFollowsChunkSize(t *testing.T) {
	tmpDir := t.TempDir()

	smallChunks := filepath.Join(tmpDir, "small.yaml")
	require.NoError(t, os.WriteFile(smallChunks, []byte("processor:\n  chunk_size: 150\n"), 0644))
	config, err := LoadConfig(smallChunks)
	require.NoError(t, err)
	assert.Equal(t, 150, config.Processor.ChunkSize)
	assert.Equal(t, 30, config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())

	explicit := filepath.Join(tmpDir, "explicit.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("processor:\n  chunk_size: 150\n  chunk_overlap: 149\n"), 0644))
	config, err = LoadConfig(explicit)
	require.NoError(t, err)
	assert.Equal(t, 149, config.Processor.ChunkOverlap)
	assert.Empty(t, config.Validate())

	tooLarge := filepath.Join(tmpDir, "large.yaml")
	require.NoError(t, os.WriteFile(tooLarge, []byte("processor:\n  chunk_size: 150\n  chunk_overlap: 200\n"), 0644))
	config, err = LoadConfig(tooLarge)
	require.NoError(t, err)
	assert.Len(t, config.Validate(), 1)
}

func TestLoadConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadConfig(filepath.Join(tmpDir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("processor: [unclosed"), 0644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		c.Processor.ChunkOverlap = 200
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid embedder",
			mutate: func(c *Config) {
				c.Embedder.BaseURL = "invalid-url"
				c.Embedder.BatchSize = 0
				c.Embedder.RateLimit = -1
			},
			errorMessages: []string{
				"embedder.base_url: invalid Ollama base URL",
				"embedder.batch_size: batch_size must be positive",
				"embedder.rate_limit: rate_limit cannot be negative",
			},
		},
		{
			name: "unknown provider and backend",
			mutate: func(c *Config) {
				c.Embedder.Provider = "openai"
				c.Store.Backend = "chroma"
			},
			errorMessages: []string{
				"embedder.provider: unknown provider: openai",
				"store.backend: unknown backend: chroma",
			},
		},
		{
			name: "pgvector without url",
			mutate: func(c *Config) {
				c.Store.Backend = "pgvector"
				c.Store.VectorDim = -1
			},
			errorMessages: []string{
				"store.url: database URL is required for pgvector",
				"store.vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "overlap not below chunk size",
			mutate: func(c *Config) {
				c.Processor.ChunkSize = 100
				c.Processor.ChunkOverlap = 100
				c.Pipeline.TopK = 0
			},
			errorMessages: []string{
				"processor.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
				"pipeline.top_k: top_k must be positive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("PDFVEC_PDF_DIR", "/data/pdfs")
	t.Setenv("PDFVEC_STORAGE", "/data/index")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "/data/pdfs", config.Pipeline.PDFDir)
	assert.Equal(t, "/data/index", config.Store.Location)
}
