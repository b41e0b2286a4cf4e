package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedder struct {
		Provider  string  `yaml:"provider"`
		Model     string  `yaml:"model"`
		BaseURL   string  `yaml:"base_url"`
		Dimension int     `yaml:"dimension"`
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embedder"`

	Store struct {
		Backend      string `yaml:"backend"`
		Location     string `yaml:"location"`
		URL          string `yaml:"url"`
		TableName    string `yaml:"table_name"`
		VectorDim    int    `yaml:"vector_dim"`
		IVFFlatLists int    `yaml:"ivfflat_lists"`
	} `yaml:"store"`

	Processor struct {
		ChunkSize    int  `yaml:"chunk_size"`
		ChunkOverlap int  `yaml:"chunk_overlap"`
		TrimSpace    bool `yaml:"trim_space"`
	} `yaml:"processor"`

	Pipeline struct {
		PDFDir        string `yaml:"pdf_dir"`
		TopK          int    `yaml:"top_k"`
		Query         string `yaml:"query"`
		BatchSize     int    `yaml:"batch_size"`
		PDFPassword   string `yaml:"pdf_password"`
		PageSeparator string `yaml:"page_separator"`
	} `yaml:"pipeline"`

	UI struct {
		Progress bool `yaml:"progress"`
		NoColor  bool `yaml:"no_color"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pdfvec/config.yaml"),
			"/etc/pdfvec/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Progress is seeded before parsing so an explicit false survives.
	config := &Config{}
	config.UI.Progress = true

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(config)

	// Apply defaults for unset values
	applyDefaults(config)

	if !overlapSet(data) {
		config.Processor.ChunkOverlap = defaultOverlap(config.Processor.ChunkSize)
	}

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	config.UI.Progress = true
	applyDefaults(config)
	config.Processor.ChunkOverlap = defaultOverlap(config.Processor.ChunkSize)
	mergeWithEnv(config)
	return config, nil
}

// defaultOverlap keeps an unset overlap at a fifth of the chunk size, so
// the default 1000 gets 200 and any positive size stays valid.
func defaultOverlap(chunkSize int) int {
	return chunkSize / 5
}

// overlapSet reports whether the file names processor.chunk_overlap, since
// an explicit zero is a valid overlap.
func overlapSet(data []byte) bool {
	var raw struct {
		Processor struct {
			ChunkOverlap *int `yaml:"chunk_overlap"`
		} `yaml:"processor"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	return raw.Processor.ChunkOverlap != nil
}

func applyDefaults(config *Config) {
	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "all-minilm"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Dimension == 0 {
		config.Embedder.Dimension = 384
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 64
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "sqlite"
	}
	if config.Store.Location == "" {
		config.Store.Location = "vector_db"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 384
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}

	if config.Pipeline.PDFDir == "" {
		config.Pipeline.PDFDir = "pdfs"
	}
	if config.Pipeline.TopK == 0 {
		config.Pipeline.TopK = 3
	}
	if config.Pipeline.Query == "" {
		config.Pipeline.Query = "What is the main topic of the documents?"
	}
	if config.Pipeline.BatchSize == 0 {
		config.Pipeline.BatchSize = 100
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if dir := os.Getenv("PDFVEC_PDF_DIR"); dir != "" {
		config.Pipeline.PDFDir = dir
	}
	if location := os.Getenv("PDFVEC_STORAGE"); location != "" {
		config.Store.Location = location
	}
}
