package main

import (
	"context"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from a directory of PDFs",
	Long: `Extracts, chunks and embeds every PDF in the configured directory and
persists the vectors. An index already present at the storage location is
replaced.`,
	Args: cobra.NoArgs,
	RunE: runIndexCmd,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndexCmd(cmd *cobra.Command, _ []string) error {
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

	return runIndex(ctx, cmd.OutOrStdout(), p, cfg)
}
