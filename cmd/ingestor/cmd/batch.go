package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
	"github.com/DrunkOnJava/ingestor-service/internal/ingestor"
	"github.com/DrunkOnJava/ingestor-service/internal/process"
	"github.com/DrunkOnJava/ingestor-service/internal/ui"
)

func newBatchCmd() *cobra.Command {
	var (
		concurrency        int
		continueOnError    bool
		prioritize         bool
		dynamicConcurrency bool
		memLimitMiB        int
		jsonOutput         bool
		plainOutput        bool
	)

	cmd := &cobra.Command{
		Use:   "batch [files...]",
		Short: "Ingest many files as one BatchEngine job, with live progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			items := make([]ingestor.BatchItem, 0, len(args))
			for _, path := range args {
				if !fileExists(path) {
					return fmt.Errorf("no such file: %s", path)
				}
				items = append(items, ingestor.BatchItem{
					ID:    path,
					Input: process.Input{Path: path},
				})
			}

			renderer := ui.NewRenderer(ui.NewConfig(os.Stdout, ui.WithForcePlain(plainOutput)))
			ctx := c.Context()
			if err := renderer.Start(ctx); err != nil {
				return err
			}
			defer renderer.Stop()

			handle := svc.IngestBatch(ctx, items, ingestor.BatchOptions{
				MaxConcurrency:       concurrency,
				ContinueOnError:      continueOnError,
				PrioritizeItems:      prioritize,
				DynamicConcurrency:   dynamicConcurrency,
				WorkerMemoryLimitMiB: memLimitMiB,
			})

			events := svc.Events()
			var result batch.Result
		drain:
			for {
				select {
				case ev := <-events:
					if ev.JobID == handle.JobID {
						renderer.HandleEvent(ev)
					}
				case result = <-handle.Done:
					break drain
				}
			}
			renderer.Complete(result)

			if jsonOutput {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent executors (default: NumCPU-1)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "keep processing after one item fails")
	cmd.Flags().BoolVar(&prioritize, "prioritize", true, "dispatch higher-priority items first")
	cmd.Flags().BoolVar(&dynamicConcurrency, "dynamic-concurrency", true, "grow/shrink the pool against live resource pressure")
	cmd.Flags().IntVar(&memLimitMiB, "worker-memory-limit", 0, "per-worker memory limit in MiB (default: 512)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "also print the final BatchResult as JSON")
	cmd.Flags().BoolVar(&plainOutput, "plain", false, "force line-oriented output even on a TTY")

	return cmd
}
