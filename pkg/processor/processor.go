package processor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xhad/pdfvec/internal/models"
	"github.com/xhad/pdfvec/internal/types"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words and
// finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var ErrInvalidConfig = errors.New("invalid processor config")

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	// TrimSpace strips surrounding whitespace from every chunk and drops
	// chunks that end up empty.
	TrimSpace bool
}

// Processor splits text with a recursive character strategy: it splits on
// the first separator present in the text, merges the pieces back into
// windows of at most ChunkSize characters that overlap by up to
// ChunkOverlap characters, and recurses with the next separator on pieces
// that are still too long. Lengths are counted in runes.
type Processor struct {
	config ProcessorConfig
}

var _ types.Splitter = (*Processor)(nil)

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}

	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidConfig, config.ChunkSize, config.ChunkOverlap)
	}

	return &Processor{config: config}, nil
}

// New returns a processor with the default 1000/200 window.
func New() *Processor {
	return &Processor{config: ProcessorConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}}
}

func (p *Processor) Config() ProcessorConfig {
	return p.config
}

// Process chunks every document independently, keeping document order.
func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, 0, len(docs))

	for _, doc := range docs {
		chunks, err := p.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Name, err)
		}
		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

// SplitText implements textsplitter.TextSplitter.
func (p *Processor) SplitText(text string) ([]string, error) {
	chunks := p.split(text, p.config.Separators)
	if chunks == nil {
		chunks = []string{}
	}
	return chunks, nil
}

func (p *Processor) split(text string, separators []string) []string {
	var chunks []string

	// Pick the first separator that occurs in the text. The empty
	// separator always matches and ends the chain.
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < p.config.ChunkSize {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			chunks = append(chunks, p.merge(pending)...)
			pending = nil
		}
		if len(next) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, p.split(piece, next)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, p.merge(pending)...)
	}

	return chunks
}

// merge packs consecutive pieces into windows. Pieces already carry their
// separator, so they are joined without one.
func (p *Processor) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)

		if total+n > p.config.ChunkSize && len(window) > 0 {
			if chunk, ok := p.join(window); ok {
				chunks = append(chunks, chunk)
			}
			// Keep at most ChunkOverlap characters of tail, and only as
			// much as still leaves room for the next piece.
			for total > p.config.ChunkOverlap || (total+n > p.config.ChunkSize && total > 0) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += n
	}

	if chunk, ok := p.join(window); ok {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func (p *Processor) join(window []string) (string, bool) {
	chunk := strings.Join(window, "")
	if p.config.TrimSpace {
		chunk = strings.TrimSpace(chunk)
	}
	return chunk, chunk != ""
}

// splitKeepingSeparator splits text on separator and glues each separator
// to the front of the piece that follows it. An empty separator splits
// into single runes. Empty pieces are dropped.
func splitKeepingSeparator(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, len(text))
		for i := 0; i < len(text); {
			_, size := utf8.DecodeRuneInString(text[i:])
			pieces = append(pieces, text[i:i+size])
			i += size
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, part := range parts[1:] {
		pieces = append(pieces, separator+part)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
