package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundctx/groundctx/internal/config"
	"github.com/groundctx/groundctx/internal/retrieval"
)

// newSearchCmd creates the search command: load a corpus, run one query,
// print ranked results and the assembled context.
func newSearchCmd() *cobra.Command {
	var (
		corpusPath  string
		limit       int
		strategy    string
		threshold   float64
		maxContext  int
		noDiversity bool
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a corpus and print ranked passages",
		Long: `Loads a JSONL corpus (one chunk object per line), ingests it into an
in-memory engine, runs a single retrieval, and prints the ranked results
with the assembled, citation-annotated context.`,
		Args: cobra.ExactArgs(1),
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

			ctx := cmd.Context()
			ingested, err := engine.Ingest(ctx, chunks)
			if err != nil {
				return err
			}
			for _, f := range ingested.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped chunk %s: %s\n", f.ChunkID, f.Reason)
			}

			opts := retrieval.Options{
				Limit:            limit,
				Strategy:         retrieval.Strategy(strategy),
				MaxContextLength: maxContext,
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = &threshold
			}
			if noDiversity {
				div := false
				opts.Diversity = &div
			}

			resp, err := engine.Retrieve(ctx, args[0], opts)
			if err != nil {
				return err
			}

			printResponse(cmd, resp, showContext)
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Path to JSONL corpus file (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (default from config)")
	cmd.Flags().StringVar(&strategy, "strategy", "auto", "Search strategy: auto, semantic, keyword, hybrid")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum semantic similarity score")
	cmd.Flags().IntVar(&maxContext, "max-context", 0, "Maximum assembled context length in characters")
	cmd.Flags().BoolVar(&noDiversity, "no-diversity", false, "Disable near-duplicate pruning")
	cmd.Flags().BoolVar(&showContext, "show-context", true, "Print the assembled context block")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

// printResponse renders a retrieval response for the terminal.
func printResponse(cmd *cobra.Command, resp *retrieval.RetrievalResponse, showContext bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "query: %s\n", resp.Query)
	fmt.Fprintf(out, "strategy: %s", resp.Strategy)
	if resp.Degraded {
		fmt.Fprint(out, " (degraded: keyword-only)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "results: %d in %dms\n\n", resp.Metadata.TotalResults, resp.Metadata.SearchTimeMs)

	for i, r := range resp.Results {
		sourceRef := ""
		if r.Chunk != nil {
			sourceRef = r.Chunk.SourceID
		}
		fmt.Fprintf(out, "%2d. [%.4f] %s (source: %s)\n", i+1, r.Score, r.ChunkID, sourceRef)
		if r.Chunk != nil {
			fmt.Fprintf(out, "    %s\n", firstLine(r.Chunk.Text, 120))
		}
	}

	if showContext && resp.Context != nil && resp.Context.Text != "" {
		fmt.Fprintf(out, "\n--- context (%d chars", resp.Context.TotalLength)
		if resp.Context.Truncated {
			fmt.Fprint(out, ", truncated")
		}
		fmt.Fprintln(out, ") ---")
		fmt.Fprintln(out, resp.Context.Text)

		fmt.Fprintln(out, "\nsources:")
		for _, s := range resp.Context.Sources {
			fmt.Fprintf(out, "  %s (%s) score=%.4f\n", s.ChunkID, s.SourceRef, s.Score)
		}
	}
}

// firstLine returns the first line of text, truncated to max characters.
func firstLine(text string, max int) string {
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
