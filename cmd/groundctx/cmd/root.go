// Package cmd provides the CLI commands for groundctx.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/groundctx/groundctx/internal/config"
	"github.com/groundctx/groundctx/internal/logging"
	"github.com/groundctx/groundctx/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the groundctx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groundctx",
		Short: "Hybrid retrieval engine for grounding generation",
		Long: `groundctx retrieves ranked, deduplicated, length-bounded passages
from an embedded text corpus, fusing vector similarity with lexical
match density. Results carry source attribution for citation.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("groundctx version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to groundctx.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCorpusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default slog logger before any command runs.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if cfg, err := config.Load(configPath); err == nil {
		logCfg.Level = cfg.Logging.Level
		logCfg.FilePath = cfg.Logging.FilePath
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging initialized", slog.Bool("debug", debugMode))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
