package pipeline

import (
	"context"
	"fmt"

	"github.com/xhad/pdfvec/internal/models"
	"github.com/xhad/pdfvec/internal/types"
)

// DefaultK is the number of results returned when a search asks for 0.
const DefaultK = 3

// Index is a handle to a built, persisted vector index. A nil *Index is
// valid and fails every search with ErrUninitializedIndex.
type Index struct {
	store    types.VectorStore
	location string
	size     int
}

func (idx *Index) Location() string {
	if idx == nil {
		return ""
	}
	return idx.location
}

// Len is the number of records stored when the handle was created.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Search returns the text of the k chunks closest to query, best match
// first. Fewer than k results are returned when the index is smaller.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	records, err := idx.SearchRecords(ctx, query, k)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Content
	}
	return texts, nil
}

// SearchRecords is Search with record ids, positions and similarity scores.
func (idx *Index) SearchRecords(ctx context.Context, query string, k int) ([]models.Record, error) {
	if idx == nil || idx.store == nil {
		return nil, ErrUninitializedIndex
	}
	if k == 0 {
		k = DefaultK
	}
	if k < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}

	docs, err := idx.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, storeFailure("similarity search", err)
	}

	records := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		r := models.Record{Content: doc.PageContent, Score: doc.Score}
		if id, ok := doc.Metadata["id"].(string); ok {
			r.ID = id
		}
		if pos, ok := doc.Metadata["position"].(int); ok {
			r.Position = pos
		}
		records = append(records, r)
	}
	return records, nil
}

func (idx *Index) Close() error {
	if idx == nil || idx.store == nil {
		return nil
	}
	err := idx.store.Close()
	idx.store = nil
	return err
}
