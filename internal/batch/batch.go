// Package batch implements BatchEngine (spec §4.9): the priority queue,
// adaptive-concurrency dispatch loop, and event fan-out sitting on top
// of WorkerPool and ResourceMonitor, with ProcessingJob state persisted
// through the Store's jobs table.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/DrunkOnJava/ingestor-service/internal/process"
	"github.com/DrunkOnJava/ingestor-service/internal/resource"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
	"github.com/DrunkOnJava/ingestor-service/internal/worker"
)

// dispatchTick is the "brief yield (~=100ms)" between main-loop
// iterations (spec §4.9 step 4d).
const dispatchTick = 100 * time.Millisecond

// Item is one unit of work submitted to ProcessBatch.
type Item struct {
	ItemID   string
	Priority int
	Input    process.Input
	Options  process.Options
}

// EventType enumerates BatchEngine's fan-out events (spec §4.9).
type EventType string

const (
	EventJobStarted    EventType = "job:started"
	EventJobProgress   EventType = "job:progress"
	EventJobCompleted  EventType = "job:completed"
	EventJobFailed     EventType = "job:failed"
	EventJobCanceled   EventType = "job:canceled"
	EventResources     EventType = "resources"
	EventItemStarted   EventType = "item:started"
	EventItemCompleted EventType = "item:completed"
	EventItemFailed    EventType = "item:failed"
	EventEntityCreated EventType = "entity:created"
)

// Event is one fan-out message (spec §4.9: "per-item events are FIFO;
// global ordering across items is not guaranteed").
type Event struct {
	Type       EventType
	JobID      string
	ItemID     string
	Percentage float64
	Snapshot   resource.Snapshot
	EntityID   string
	Err        error
}

// Options configures one ProcessBatch call (spec §4.9).
type Options struct {
	// JobID, when set, is used as the ProcessingJob id instead of
	// generating a fresh uuid — lets a caller (internal/ingestor.Service)
	// know the id before the job starts, so cancel(jobId) has something
	// to key on.
	JobID                string
	MaxConcurrency       int
	ContinueOnError      bool
	PrioritizeItems      bool
	DynamicConcurrency   bool
	WorkerMemoryLimitMiB int
	ItemTimeout          time.Duration
}

// WithDefaults fills zero-valued fields with spec §4.9's stated
// defaults. Only MaxConcurrency/WorkerMemoryLimitMiB are defaulted here
// since zero is unambiguously "unset" for them; the boolean options
// (ContinueOnError, PrioritizeItems, DynamicConcurrency) all default
// true per spec, so callers construct Options via a literal that sets
// them explicitly rather than relying on Go's bool zero value.
func (o Options) WithDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = max(1, runtime.NumCPU()-1)
	}
	if o.WorkerMemoryLimitMiB <= 0 {
		o.WorkerMemoryLimitMiB = resource.DefaultMemoryLimitMiB
	}
	return o
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Result is BatchResult (spec §4.9).
type Result struct {
	JobID           string
	State           store.JobState
	ItemsTotal      int
	ItemsSuccessful int
	ItemsFailed     int
	Results         map[string]process.Result
	ErrorSummary    string
}

// Engine runs ProcessBatch over a WorkerPool, observing a ResourceMonitor
// for adaptive concurrency and persisting ProcessingJob state to Store.
type Engine struct {
	factory worker.Factory
	store   *store.Store
	events  chan Event
}

// NewEngine builds an Engine. factory is handed to the internal
// WorkerPool to spawn isolated executors per item (spec §4.7); s
// persists the durable ProcessingJob summary (spec §3).
func NewEngine(factory worker.Factory, s *store.Store) *Engine {
	return &Engine{
		factory: factory,
		store:   s,
		events:  make(chan Event, 256),
	}
}

// Events is the channel external collaborators (CLI, MCP) drain for
// BatchEngine's fan-out events (spec §6).
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// ProcessBatch runs spec §4.9's algorithm end to end: assign job/item
// ids, optionally priority-sort, spawn workers, loop dispatching to idle
// workers and adapting concurrency until the queue drains, then
// finalize the ProcessingJob's terminal state.
func (e *Engine) ProcessBatch(ctx context.Context, items []Item, opts Options) (Result, error) {
	opts = opts.WithDefaults()
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	queue := make([]Item, len(items))
	copy(queue, items)
	for i := range queue {
		if queue[i].ItemID == "" {
			queue[i].ItemID = uuid.NewString()
		}
	}
	if opts.PrioritizeItems {
		sort.SliceStable(queue, func(i, j int) bool { return queue[i].Priority > queue[j].Priority })
	}

	job := store.Job{
		ID:         jobID,
		Kind:       store.JobKindBatch,
		State:      store.JobStateProcessing,
		StartedAt:  time.Now().UTC(),
		ItemsTotal: len(queue),
	}
	if e.store != nil {
		_ = e.store.SaveJob(ctx, job)
	}
	e.emit(Event{Type: EventJobStarted, JobID: jobID})

	pool := worker.NewPool(e.factory, opts.WorkerMemoryLimitMiB)
	monitor := resource.NewMonitor()
	if opts.DynamicConcurrency {
		monitor.Start(ctx)
		defer monitor.Stop()
	}
	defer pool.TerminateAll()

	target := opts.MaxConcurrency
	idle := make([]string, 0, target)
	for i := 0; i < target; i++ {
		id, err := pool.CreateIdleWorker(ctx)
		if err != nil {
			break
		}
		idle = append(idle, id)
	}

	results := make(map[string]process.Result, len(queue))
	itemOf := make(map[string]Item, len(queue))
	for _, it := range queue {
		itemOf[it.ItemID] = it
	}

	busy := make(map[string]string) // workerID -> itemID

	seenEntities := make(map[string]bool)
	processed, failed := 0, 0
	canceled := false
	failFast := false
	stalled := false

	ticker := time.NewTicker(dispatchTick)
	defer ticker.Stop()

	for len(queue) > 0 || len(busy) > 0 {
		select {
		case <-ctx.Done():
			canceled = true
			queue = nil
		default:
		}
		if canceled {
			break
		}

		if opts.DynamicConcurrency {
			select {
			case snap := <-monitor.Snapshots():
				e.emit(Event{Type: EventResources, JobID: jobID, Snapshot: snap})
				advised := resource.AdviseConcurrency(target, snap, opts.WorkerMemoryLimitMiB)
				idle = e.rebalance(ctx, pool, idle, busy, advised)
				target = advised
			default:
			}
		}

		if !failFast {
			for len(idle) > 0 && len(queue) > 0 {
				wID := idle[0]
				idle = idle[1:]
				item := queue[0]
				queue = queue[1:]

				if err := pool.AssignWork(wID, worker.Item{ItemID: item.ItemID, Input: item.Input, Options: item.Options}); err != nil {
					queue = append([]Item{item}, queue...)
					idle = append(idle, wID)
					break
				}
				busy[wID] = item.ItemID
				e.emit(Event{Type: EventItemStarted, JobID: jobID, ItemID: item.ItemID})
			}
		}

		// No executor could be spawned at all (factory exhausted or
		// erroring) and nothing is in flight: the remaining queue can
		// never be dispatched, so fail it out rather than spin forever
		// on the ticker waiting for results that will never arrive.
		if !failFast && len(queue) > 0 && len(idle) == 0 && len(busy) == 0 {
			for _, item := range queue {
				failed++
				processed++
				err := fmt.Errorf("no executor available to process item %s", item.ItemID)
				results[item.ItemID] = process.Result{Success: false, Error: err.Error()}
				e.emit(Event{Type: EventItemFailed, JobID: jobID, ItemID: item.ItemID, Err: err})
				pct := float64(processed) / float64(len(itemOf)) * 100
				e.emit(Event{Type: EventJobProgress, JobID: jobID, Percentage: pct})
			}
			queue = nil
			failFast = true
			stalled = true
		}

		select {
		case res := <-pool.Results():
			wID := e.workerForItem(busy, res.ItemID)
			delete(busy, wID)
			idle = append(idle, wID)
			processed++

			if res.Status == worker.StatusSuccess {
				results[res.ItemID] = res.Result
				e.emit(Event{Type: EventItemCompleted, JobID: jobID, ItemID: res.ItemID})
				for _, id := range res.Result.EntityIDs {
					if !seenEntities[id] {
						seenEntities[id] = true
						e.emit(Event{Type: EventEntityCreated, JobID: jobID, EntityID: id})
					}
				}
			} else {
				failed++
				results[res.ItemID] = res.Result
				e.emit(Event{Type: EventItemFailed, JobID: jobID, ItemID: res.ItemID, Err: res.Err})
				if !opts.ContinueOnError {
					failFast = true
					queue = nil
				}
			}

			pct := float64(processed) / float64(len(itemOf)) * 100
			e.emit(Event{Type: EventJobProgress, JobID: jobID, Percentage: pct})

		case <-ticker.C:
		case <-ctx.Done():
			canceled = true
			queue = nil
		}

		if failFast && len(busy) == 0 {
			break
		}
	}

	result := Result{
		JobID:           jobID,
		ItemsTotal:      len(itemOf),
		ItemsSuccessful: processed - failed,
		ItemsFailed:     failed,
		Results:         results,
	}

	switch {
	case canceled:
		result.State = store.JobStateCanceled
		e.emit(Event{Type: EventJobCanceled, JobID: jobID})
	case stalled:
		result.State = store.JobStateFailed
		result.ErrorSummary = fmt.Sprintf("%d item(s) could not be dispatched: no executor available", failed)
		e.emit(Event{Type: EventJobFailed, JobID: jobID, Err: fmt.Errorf("%s", result.ErrorSummary)})
	case failFast:
		result.State = store.JobStateFailed
		result.ErrorSummary = fmt.Sprintf("%d item(s) failed with continueOnError=false", failed)
		e.emit(Event{Type: EventJobFailed, JobID: jobID, Err: fmt.Errorf("%s", result.ErrorSummary)})
	default:
		result.State = store.JobStateCompleted
		e.emit(Event{Type: EventJobCompleted, JobID: jobID})
	}

	if e.store != nil {
		endedAt := time.Now().UTC()
		job.State = result.State
		job.EndedAt = &endedAt
		job.Progress = 100
		job.ItemsSuccessful = result.ItemsSuccessful
		job.ItemsFailed = result.ItemsFailed
		job.ErrorSummary = result.ErrorSummary
		_ = e.store.SaveJob(ctx, job)
	}

	return result, nil
}

// rebalance grows or shrinks the pool toward target, terminating idle
// workers first on shrink (spec §4.9 step 4a / §5 worker-level
// cancellation: "busy workers finish their current item then exit").
func (e *Engine) rebalance(ctx context.Context, pool *worker.Pool, idle []string, busy map[string]string, target int) []string {
	current := pool.Size()
	switch {
	case current > target:
		excess := current - target
		for excess > 0 && len(idle) > 0 {
			w := idle[len(idle)-1]
			idle = idle[:len(idle)-1]
			pool.Terminate(w)
			excess--
		}
	case current < target:
		for i := current; i < target; i++ {
			id, err := pool.CreateIdleWorker(ctx)
			if err != nil {
				break
			}
			idle = append(idle, id)
		}
	}
	return idle
}

func (e *Engine) workerForItem(busy map[string]string, itemID string) string {
	for w, id := range busy {
		if id == itemID {
			return w
		}
	}
	return ""
}
