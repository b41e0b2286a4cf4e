package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/xhad/pdfvec/internal/types"
)

// Extension is the suffix used to discover PDF files, compared
// case-insensitively.
const Extension = ".pdf"

type ExtractorConfig struct {
	// Password opens encrypted PDFs.
	Password string
	// PageSeparator is inserted between pages. Empty concatenates pages
	// back to back.
	PageSeparator string
}

// PDFExtractor reads the plain text of PDF files page by page.
type PDFExtractor struct {
	config ExtractorConfig
}

var _ types.Extractor = (*PDFExtractor)(nil)

func NewWithConfig(config ExtractorConfig) *PDFExtractor {
	return &PDFExtractor{config: config}
}

func New() *PDFExtractor {
	return NewWithConfig(ExtractorConfig{})
}

// Extract returns the text of every page of the PDF at path, in page order.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	text, _, err := e.ExtractPages(ctx, path)
	return text, err
}

// ExtractPages is Extract that also reports the number of pages read.
func (e *PDFExtractor) ExtractPages(ctx context.Context, path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var opts []documentloaders.PDFOptions
	if e.config.Password != "" {
		opts = append(opts, documentloaders.WithPassword(e.config.Password))
	}

	pages, err := loadPages(ctx, documentloaders.NewPDF(f, info.Size(), opts...))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString(e.config.PageSeparator)
		}
		b.WriteString(page)
	}

	return b.String(), len(pages), nil
}

// loadPages recovers from panics in the PDF parser, which it raises on
// some malformed inputs instead of returning an error.
func loadPages(ctx context.Context, loader documentloaders.PDF) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	pages = make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}
	return pages, nil
}

// Discover lists the PDF files directly inside dir, sorted by file name.
// Subdirectories are not descended into.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPDF(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), Extension)
}
