package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundctx/groundctx/internal/config"
)

// newCorpusCmd creates the corpus command group.
func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect a corpus file",
	}
	cmd.AddCommand(newCorpusStatsCmd())
	return cmd
}

// newCorpusStatsCmd creates the corpus stats command: ingest a corpus and
// report index statistics.
func newCorpusStatsCmd() *cobra.Command {
	var corpusPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Ingest a corpus and print index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			chunks, err := loadCorpus(corpusPath)
			if err != nil {
				return err
			}

			result, err := engine.Ingest(cmd.Context(), chunks)
			if err != nil {
				return err
			}

			stats := engine.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chunks indexed:  %d\n", result.Indexed)
			fmt.Fprintf(out, "chunks failed:   %d\n", len(result.Failed))
			fmt.Fprintf(out, "dimensions:      %d\n", stats.Dimensions)
			fmt.Fprintf(out, "embedding model: %s\n", stats.Model)
			fmt.Fprintf(out, "vector backend:  %s\n", cfg.Search.VectorBackend)
			fmt.Fprintf(out, "keyword backend: %s\n", cfg.Search.KeywordBackend)

			for _, f := range result.Failed {
				fmt.Fprintf(out, "  failed %s: %s\n", f.ChunkID, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Path to JSONL corpus file (required)")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}
