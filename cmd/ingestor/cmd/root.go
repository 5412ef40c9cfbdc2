// Package cmd provides the ingestor CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrunkOnJava/ingestor-service/internal/config"
	"github.com/DrunkOnJava/ingestor-service/internal/ingestor"
	"github.com/DrunkOnJava/ingestor-service/internal/logging"
	"github.com/DrunkOnJava/ingestor-service/pkg/version"
)

var (
	configDir      string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd builds the ingestor root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ingestor",
		Short:   "Content ingestion: entity extraction, chunking, and batch processing over an embedded store",
		Version: version.Version,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if !debugMode {
				return nil
			}
			logger, cleanup, err := logging.Setup(logging.DebugConfig())
			if err != nil {
				return fmt.Errorf("setting up debug logging: %w", err)
			}
			loggingCleanup = cleanup
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("ingestor version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory to load .ingestor.yaml from")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newService loads config from configDir and builds a Service, the
// shared entry point every subcommand drives.
func newService() (*ingestor.Service, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing data directories: %w", err)
	}
	return ingestor.New(cfg)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
