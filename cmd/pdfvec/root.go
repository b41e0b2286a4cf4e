package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/xhad/pdfvec/internal/types"
	cfgPkg "github.com/xhad/pdfvec/pkg/config"
	"github.com/xhad/pdfvec/pkg/extractor"
	"github.com/xhad/pdfvec/pkg/llm"
	"github.com/xhad/pdfvec/pkg/pipeline"
	"github.com/xhad/pdfvec/pkg/processor"
	"github.com/xhad/pdfvec/pkg/store"
)

var (
	configPath string
	pdfDir     string
	storage    string
	topK       int
	query      string
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfvec",
	Short: "Index PDFs into a local vector store and search them",
	Long: `Extracts the text of every PDF in a directory, splits it into
overlapping chunks, embeds the chunks and stores them in a vector index.
Without a subcommand the whole pipeline runs and an example query is
searched against the fresh index.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config file")
	flags.StringVar(&pdfDir, "pdf-dir", "", "directory holding the PDFs (default \"pdfs\")")
	flags.StringVar(&storage, "storage", "", "directory holding the vector index (default \"vector_db\")")
	flags.IntVarP(&topK, "top-k", "k", 0, "number of results to return (default 3)")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	rootCmd.Flags().StringVar(&query, "query", "", "query searched after indexing")
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := runIndex(ctx, cmd.OutOrStdout(), p, cfg); err != nil {
		return err
	}

	return runQuery(ctx, cmd.OutOrStdout(), p, cfg.Pipeline.Query, cfg.Pipeline.TopK)
}

// loadConfig reads the config file and lays command line flags over it.
func loadConfig() (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if pdfDir != "" {
		cfg.Pipeline.PDFDir = pdfDir
	}
	if storage != "" {
		cfg.Store.Location = storage
	}
	if topK != 0 {
		cfg.Pipeline.TopK = topK
	}
	if query != "" {
		cfg.Pipeline.Query = query
	}
	if noProgress {
		cfg.UI.Progress = false
	}
	if cfg.UI.NoColor {
		color.NoColor = true
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(joined...))
	}

	return cfg, nil
}

func newPipeline(cfg *cfgPkg.Config, progressOut io.Writer) (*pipeline.Pipeline, error) {
	ex := extractor.NewWithConfig(extractor.ExtractorConfig{
		Password:      cfg.Pipeline.PDFPassword,
		PageSeparator: cfg.Pipeline.PageSeparator,
	})

	splitter, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
		TrimSpace:    cfg.Processor.TrimSpace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		Dimension: cfg.Embedder.Dimension,
		BatchSize: cfg.Embedder.BatchSize,
		RateLimit: cfg.Embedder.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	openStore := func(ctx context.Context, location string, emb embeddings.Embedder) (types.VectorStore, error) {
		return store.Open(ctx, store.VectorStoreConfig{
			Backend:      cfg.Store.Backend,
			Location:     location,
			ConnString:   cfg.Store.URL,
			TableName:    cfg.Store.TableName,
			VectorDim:    cfg.Store.VectorDim,
			IVFFlatLists: cfg.Store.IVFFlatLists,
		}, emb)
	}

	pipelineConfig := pipeline.PipelineConfig{BatchSize: cfg.Pipeline.BatchSize}
	if cfg.UI.Progress {
		pipelineConfig.OnProgress = newProgressReporter(progressOut).report
	}

	return pipeline.New(ex, splitter, embedder, openStore, pipelineConfig), nil
}

func runIndex(ctx context.Context, out io.Writer, p *pipeline.Pipeline, cfg *cfgPkg.Config) error {
	color.New(color.FgBlue).Fprintf(out, "Looking for PDFs in directory: %s\n", cfg.Pipeline.PDFDir)

	idx, err := p.Run(ctx, cfg.Pipeline.PDFDir, cfg.Store.Location)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(out, "✓ Indexed %d text chunks and persisted them to %s\n", idx.Len(), idx.Location())

	return nil
}

func runQuery(ctx context.Context, out io.Writer, p *pipeline.Pipeline, q string, k int) error {
	color.New(color.FgCyan).Fprintf(out, "Searching for: %s\n", q)

	results, err := p.Search(ctx, q, k)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintln(out, "\nSearch results:")
	heading := color.New(color.FgGreen, color.Bold)
	for i, result := range results {
		heading.Fprintf(out, "\nResult %d:\n", i+1)
		fmt.Fprintln(out, result)
	}

	return nil
}
