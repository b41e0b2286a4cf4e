package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/pdfvec/internal/types"
)

const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

var (
	ErrNoEmbedder         = errors.New("store: no embedder configured")
	ErrDimensionMismatch  = errors.New("store: embedding dimension mismatch")
	ErrFiltersUnsupported = errors.New("store: metadata filters are not supported")
)

type VectorStoreConfig struct {
	Backend string

	// Location is the directory holding the sqlite index.
	Location string

	// pgvector settings.
	ConnString   string
	TableName    string
	VectorDim    int
	IVFFlatLists int // builds an ivfflat index when positive
}

// Open connects to the configured backend. Search and insert embed text
// with embedder unless a call overrides it with vectorstores.WithEmbedder.
func Open(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder) (types.VectorStore, error) {
	switch config.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, config, embedder)
	case BackendPGVector:
		return NewPGVectorStore(ctx, config, embedder)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", config.Backend)
	}
}

func resolveOptions(fallback embeddings.Embedder, options []vectorstores.Option) (vectorstores.Options, error) {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Filters != nil {
		return opts, ErrFiltersUnsupported
	}
	if opts.Embedder == nil {
		opts.Embedder = fallback
	}
	if opts.Embedder == nil {
		return opts, ErrNoEmbedder
	}
	return opts, nil
}

// embedDocuments embeds the page contents of docs and checks that every
// vector has the same dimension. want is the dimension already stored at
// the location, 0 when unknown.
func embedDocuments(ctx context.Context, embedder embeddings.Embedder, docs []schema.Document, want int) ([]string, [][]float32, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = sanitizeUTF8(doc.PageContent)
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, nil, fmt.Errorf("store: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	for _, v := range vectors {
		if want == 0 {
			want = len(v)
		}
		if len(v) == 0 || len(v) != want {
			return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
		}
	}

	return texts, vectors, nil
}

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
