package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/pdfvec/internal/models"
	"github.com/xhad/pdfvec/internal/types"
	"github.com/xhad/pdfvec/pkg/extractor"
)

type Stage string

const (
	StageExtract Stage = "extract"
	StageEmbed   Stage = "embed"
)

// StoreFactory opens the vector store kept at location.
type StoreFactory func(ctx context.Context, location string, embedder embeddings.Embedder) (types.VectorStore, error)

type PipelineConfig struct {
	// BatchSize is the number of chunks handed to the store per call.
	BatchSize int
	// OnProgress is called after each file is extracted and after each
	// batch is embedded.
	OnProgress func(stage Stage, done, total int)
}

// Pipeline turns a directory of PDFs into a searchable vector index. It
// starts without an index; BuildIndex or OpenIndex attaches one and there
// is no way to detach it other than Close.
type Pipeline struct {
	config    PipelineConfig
	extractor types.Extractor
	splitter  types.Splitter
	embedder  embeddings.Embedder
	openStore StoreFactory
	index     *Index
}

func New(ex types.Extractor, splitter types.Splitter, embedder embeddings.Embedder, openStore StoreFactory, config PipelineConfig) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Pipeline{
		config:    config,
		extractor: ex,
		splitter:  splitter,
		embedder:  embedder,
		openStore: openStore,
	}
}

// Index returns the current index handle, nil before a build.
func (p *Pipeline) Index() *Index {
	return p.index
}

type pageExtractor interface {
	ExtractPages(ctx context.Context, path string) (string, int, error)
}

// DiscoverAndExtract extracts every PDF in dir in file name order. The
// first file that fails aborts the whole run.
func (p *Pipeline) DiscoverAndExtract(ctx context.Context, dir string) ([]models.Document, error) {
	paths, err := extractor.Discover(dir)
	if err != nil {
		return nil, &ExtractionError{Path: dir, Err: err}
	}

	docs := make([]models.Document, 0, len(paths))
	for i, path := range paths {
		doc := models.Document{Name: filepath.Base(path), Path: path}

		if pe, ok := p.extractor.(pageExtractor); ok {
			doc.Content, doc.Pages, err = pe.ExtractPages(ctx, path)
		} else {
			doc.Content, err = p.extractor.Extract(ctx, path)
		}
		if err != nil {
			return nil, &ExtractionError{Path: path, Err: err}
		}

		docs = append(docs, doc)
		p.progress(StageExtract, i+1, len(paths))
	}

	return docs, nil
}

// BuildChunks splits each document in order and flattens the result.
func (p *Pipeline) BuildChunks(docs []models.Document) ([]string, error) {
	processed, err := p.splitter.Process(docs)
	if err != nil {
		return nil, err
	}

	chunks := []string{}
	for _, doc := range processed {
		chunks = append(chunks, doc.Chunks...)
	}
	return chunks, nil
}

// BuildIndex embeds chunks into the store at location and persists it.
// Records already stored at location are replaced.
func (p *Pipeline) BuildIndex(ctx context.Context, chunks []string, location string) (idx *Index, err error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	store, err := p.openStore(ctx, location, p.embedder)
	if err != nil {
		return nil, storeFailure("open store", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, store.Close())
		}
	}()

	// Until Persist commits, the records at location are untouched and a
	// previous handle on them keeps answering.
	if err := store.Replace(ctx); err != nil {
		return nil, storeFailure("replace store", err)
	}

	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(chunks))

		docs := make([]schema.Document, 0, end-start)
		for _, chunk := range chunks[start:end] {
			docs = append(docs, schema.Document{PageContent: chunk})
		}
		if _, err := store.AddDocuments(ctx, docs); err != nil {
			return nil, storeFailure("add documents", err)
		}
		p.progress(StageEmbed, end, len(chunks))
	}

	if err := store.Persist(ctx); err != nil {
		return nil, storeFailure("persist store", err)
	}

	if p.index != nil {
		_ = p.index.Close()
	}
	p.index = &Index{store: store, location: location, size: len(chunks)}
	return p.index, nil
}

// OpenIndex attaches an index persisted by an earlier BuildIndex.
func (p *Pipeline) OpenIndex(ctx context.Context, location string) (idx *Index, err error) {
	store, err := p.openStore(ctx, location, p.embedder)
	if err != nil {
		return nil, storeFailure("open store", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, store.Close())
		}
	}()

	n, err := store.Count(ctx)
	if err != nil {
		return nil, storeFailure("count records", err)
	}
	if n == 0 {
		return nil, ErrIndexNotFound
	}

	if p.index != nil {
		_ = p.index.Close()
	}
	p.index = &Index{store: store, location: location, size: n}
	return p.index, nil
}

// Run extracts, chunks and indexes every PDF in dir.
func (p *Pipeline) Run(ctx context.Context, dir, location string) (*Index, error) {
	docs, err := p.DiscoverAndExtract(ctx, dir)
	if err != nil {
		return nil, err
	}

	chunks, err := p.BuildChunks(docs)
	if err != nil {
		return nil, err
	}

	return p.BuildIndex(ctx, chunks, location)
}

// Search queries the current index. See Index.Search.
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]string, error) {
	return p.index.Search(ctx, query, k)
}

func (p *Pipeline) Close() error {
	return p.index.Close()
}

func (p *Pipeline) progress(stage Stage, done, total int) {
	if p.config.OnProgress != nil {
		p.config.OnProgress(stage, done, total)
	}
}
