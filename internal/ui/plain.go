package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
)

// PlainRenderer prints one line per event, for CI and non-TTY output.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer builds a PlainRenderer writing to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

func (r *PlainRenderer) Start(ctx context.Context) error { return nil }

func (r *PlainRenderer) HandleEvent(ev batch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case batch.EventJobStarted:
		fmt.Fprintf(r.out, "job %s started\n", ev.JobID)
	case batch.EventJobProgress:
		fmt.Fprintf(r.out, "job %s: %.0f%%\n", ev.JobID, ev.Percentage)
	case batch.EventItemStarted:
		fmt.Fprintf(r.out, "  item %s started\n", ev.ItemID)
	case batch.EventItemCompleted:
		fmt.Fprintf(r.out, "  item %s done\n", ev.ItemID)
	case batch.EventItemFailed:
		fmt.Fprintf(r.out, "  item %s FAILED: %v\n", ev.ItemID, ev.Err)
	case batch.EventEntityCreated:
		fmt.Fprintf(r.out, "  entity %s created\n", ev.EntityID)
	case batch.EventResources:
		fmt.Fprintf(r.out, "  cpu=%.0f%% free_mem=%dMiB/%dMiB\n", ev.Snapshot.CPUPercent, ev.Snapshot.FreeMemoryMiB, ev.Snapshot.TotalMemoryMiB)
	case batch.EventJobCompleted:
		fmt.Fprintf(r.out, "job %s completed\n", ev.JobID)
	case batch.EventJobFailed:
		fmt.Fprintf(r.out, "job %s FAILED: %v\n", ev.JobID, ev.Err)
	case batch.EventJobCanceled:
		fmt.Fprintf(r.out, "job %s canceled\n", ev.JobID)
	}
}

func (r *PlainRenderer) Complete(result batch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%s: %d/%d succeeded, %d failed\n",
		result.State, result.ItemsSuccessful, result.ItemsTotal, result.ItemsFailed)
	if result.ErrorSummary != "" {
		fmt.Fprintf(r.out, "  %s\n", result.ErrorSummary)
	}
}

func (r *PlainRenderer) Stop() error { return nil }
