package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

const (
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int    // output size of the hash provider
	BatchSize int
	RateLimit float64 // client calls per second, 0 disables throttling
}

// Embedder turns texts into vectors. It satisfies embeddings.Embedder, so
// it can be handed to any langchaingo vector store.
type Embedder struct {
	Config EmbedderConfig
	embeddings.Embedder
}

var _ embeddings.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	// Validate and set default values for config fields if necessary
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "all-minilm" // sentence-transformers all-MiniLM-L6-v2
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.Dimension == 0 {
		config.Dimension = DefaultHashDimension
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	if config.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit cannot be negative")
	}

	var client embeddings.EmbedderClient
	switch config.Provider {
	case ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	case ProviderHash:
		hc, err := NewHashingClient(config.Dimension)
		if err != nil {
			return nil, err
		}
		client = hc
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}

	if config.RateLimit > 0 {
		client = &rateLimitedClient{
			client:  client,
			limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		}
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		Config:   config,
		Embedder: emb,
	}, nil
}

// NewHashEmbedder returns an offline embedder with the given dimension.
func NewHashEmbedder(dimension int) (*Embedder, error) {
	return NewEmbedderWithConfig(EmbedderConfig{
		Provider:  ProviderHash,
		Dimension: dimension,
	})
}

type rateLimitedClient struct {
	client  embeddings.EmbedderClient
	limiter *rate.Limiter
}

func (c *rateLimitedClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.client.CreateEmbedding(ctx, texts)
}
