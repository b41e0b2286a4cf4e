package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction is matched by every *ExtractionError.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmptyCorpus is returned when an index build has no chunks to embed.
	ErrEmptyCorpus = errors.New("no text chunks to index")
	// ErrUninitializedIndex is returned by searches before an index exists.
	ErrUninitializedIndex = errors.New("vector store not initialized, process PDFs first")
	// ErrStoreFailure wraps errors coming from the vector store.
	ErrStoreFailure = errors.New("vector store failure")
	// ErrInvalidK is returned for a negative result count.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrIndexNotFound is returned when opening a location holding no records.
	ErrIndexNotFound = errors.New("no index found")
)

// ExtractionError reports the file that could not be read or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}
