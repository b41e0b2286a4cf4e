package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhad/pdfvec/pkg/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search an existing vector index",
	Long: `Opens the index persisted by a previous run and prints the chunks
most similar to the query, best match first.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	if _, err := p.OpenIndex(ctx, cfg.Store.Location); err != nil {
		if errors.Is(err, pipeline.ErrIndexNotFound) {
			return fmt.Errorf("%w at %s, run `pdfvec index` first", err, cfg.Store.Location)
		}
		return err
	}

	return runQuery(ctx, cmd.OutOrStdout(), p, args[0], cfg.Pipeline.TopK)
}
