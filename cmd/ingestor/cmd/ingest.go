package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/DrunkOnJava/ingestor-service/internal/ingestor"
	"github.com/DrunkOnJava/ingestor-service/internal/process"
)

func newIngestCmd() *cobra.Command {
	var (
		chunkSize       int
		chunkOverlap    int
		noChunk         bool
		noExtract       bool
		continueOnError bool
		jsonOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a single file or stdin through the content pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var in process.Input
			if len(args) == 1 {
				in.Path = args[0]
			} else {
				body, err := io.ReadAll(c.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				in.Body = body
				in.Filename = "stdin"
			}

			result, err := svc.Ingest(c.Context(), in, ingestor.IngestOptions{
				ExtractEntities: !noExtract,
				EnableChunking:  !noChunk,
				ChunkSize:       chunkSize,
				ChunkOverlap:    chunkOverlap,
				ContinueOnError: continueOnError,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintf(c.OutOrStdout(), "content_id=%s chunks=%d success=%t\n", result.ContentID, result.Chunks, result.Success)
			if result.Error != "" {
				fmt.Fprintf(c.OutOrStdout(), "error: %s\n", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "override configured chunk size (bytes)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "override configured chunk overlap (bytes)")
	cmd.Flags().BoolVar(&noChunk, "no-chunk", false, "disable chunking, persist content whole")
	cmd.Flags().BoolVar(&noExtract, "no-extract", false, "has no effect: entity extraction always runs")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "don't fail the whole run on one item's error")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the result as JSON")

	return cmd
}
