package types

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/pdfvec/internal/models"
)

// Extractor returns the concatenated text of every page of a file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Splitter breaks texts into ordered chunks.
type Splitter interface {
	textsplitter.TextSplitter

	// Process splits every document on its own, keeping document order.
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}

// VectorStore persists chunk embeddings and answers nearest-neighbour
// queries by embedding the query text with the embedder it was opened with.
type VectorStore interface {
	vectorstores.VectorStore

	// Replace starts a rebuild. Stored records are dropped and later
	// AddDocuments calls stage the new set; both become visible together
	// on Persist. Closing without Persist keeps the previous records.
	Replace(ctx context.Context) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	// Persist commits a pending rebuild and flushes writes to durable
	// storage.
	Persist(ctx context.Context) error
	Close() error
}
