// Package worker implements WorkerPool (spec §4.7): a dynamic set of
// executors, each owning its own ContentProcessor and Store connection,
// coordinated by a single-threaded pool owner through message-passing
// channels rather than shared memory. Go has no in-process OS-thread
// isolation to match the spec's "own heap" wording exactly, so each
// executor is a goroutine that never touches another executor's state —
// every value crossing the channel boundary is copied, matching the
// "results and errors cross the boundary by copy" invariant.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/DrunkOnJava/ingestor-service/internal/process"
)

// DefaultMemoryLimitMiB is the advisory per-executor memory limit (spec §4.7).
const DefaultMemoryLimitMiB = 512

// Item is the main → executor assignment message.
type Item struct {
	ItemID  string
	Input   process.Input
	Options process.Options
}

// Status is the executor → main result discriminator.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the executor → main message: either a successful
// process.Result or a captured error.
type Result struct {
	ItemID string
	Status Status
	Result process.Result
	Err    error
}

// Factory builds one executor's isolated ContentProcessor, and the
// teardown func for its underlying Store connection. Each worker calls
// this exactly once, so a factory backed by a file-based Store gets one
// connection per executor (spec §4.7 "own Store connection"; WAL mode
// serializes the resulting writers per spec §5).
type Factory func() (*process.Processor, func() error, error)

// worker is one executor: a goroutine reading assignments off assignCh
// until closed or canceled, replying on resultCh.
type worker struct {
	id       string
	assignCh chan Item
	cancelCh chan struct{}
	doneCh   chan struct{}
}

// Pool owns a dynamic set of executors and dispatches work to them
// (spec §4.7 lifecycle: createIdleWorker, assignWork, terminate,
// terminateAll).
type Pool struct {
	factory      Factory
	memLimitMiB  int
	results      chan Result
	workers      map[string]*worker
	nextWorkerID int
}

// NewPool constructs a Pool. memLimitMiB <= 0 uses DefaultMemoryLimitMiB.
func NewPool(factory Factory, memLimitMiB int) *Pool {
	if memLimitMiB <= 0 {
		memLimitMiB = DefaultMemoryLimitMiB
	}
	return &Pool{
		factory:     factory,
		memLimitMiB: memLimitMiB,
		results:     make(chan Result, 64),
		workers:     make(map[string]*worker),
	}
}

// MemoryLimitMiB reports the advisory per-executor memory limit fed to
// ResourceMonitor's concurrency advice (spec §4.8).
func (p *Pool) MemoryLimitMiB() int { return p.memLimitMiB }

// Results is the channel BatchEngine drains for executor replies.
func (p *Pool) Results() <-chan Result { return p.results }

// Size reports the current worker count.
func (p *Pool) Size() int { return len(p.workers) }

// CreateIdleWorker spawns one executor goroutine with its own
// ContentProcessor/Store connection and adds it to the pool, idle until
// AssignWork is called.
func (p *Pool) CreateIdleWorker(ctx context.Context) (string, error) {
	proc, closeStore, err := p.factory()
	if err != nil {
		return "", fmt.Errorf("spawn executor: %w", err)
	}

	p.nextWorkerID++
	id := fmt.Sprintf("worker-%d", p.nextWorkerID)
	w := &worker{
		id:       id,
		assignCh: make(chan Item, 1),
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	p.workers[id] = w

	go w.run(ctx, proc, closeStore, p.results)
	return id, nil
}

// AssignWork hands one item to an idle worker (spec §4.7 assignWork).
// Returns an error if the worker id is unknown or already busy/exited.
func (p *Pool) AssignWork(workerID string, item Item) error {
	w, ok := p.workers[workerID]
	if !ok {
		return fmt.Errorf("worker %s not in pool", workerID)
	}
	select {
	case w.assignCh <- item:
		return nil
	default:
		return fmt.Errorf("worker %s is busy", workerID)
	}
}

// Terminate sends a cooperative cancel to one worker and removes it from
// the pool once it exits, or once gracePeriod elapses (spec §4.7
// terminate; spec §5's "<=5s" grace period). Busy workers finish their
// current item before exiting.
func (p *Pool) Terminate(workerID string) {
	w, ok := p.workers[workerID]
	if !ok {
		return
	}
	close(w.cancelCh)
	select {
	case <-w.doneCh:
	case <-time.After(gracePeriod):
	}
	delete(p.workers, workerID)
}

// TerminateAll cancels and removes every worker (spec §4.7 terminateAll,
// §5 job-level cancellation).
func (p *Pool) TerminateAll() {
	for id := range p.workers {
		p.Terminate(id)
	}
}

// run is the executor goroutine body: wait for an assignment or cancel,
// process it, reply, repeat. A panic during processing is recovered and
// reported as a StatusError result so the pool can record the item as
// failed and respawn a replacement (spec §4.7 "on executor crash").
func (w *worker) run(ctx context.Context, proc *process.Processor, closeStore func() error, results chan<- Result) {
	defer close(w.doneCh)
	defer func() {
		if closeStore != nil {
			_ = closeStore()
		}
	}()

	for {
		select {
		case <-w.cancelCh:
			return
		case <-ctx.Done():
			return
		case item := <-w.assignCh:
			results <- w.process(ctx, proc, item)
		}
	}
}

func (w *worker) process(ctx context.Context, proc *process.Processor, item Item) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				ItemID: item.ItemID,
				Status: StatusError,
				Err:    fmt.Errorf("executor %s crashed: %v", w.id, r),
			}
		}
	}()

	result, err := proc.Process(ctx, item.Input, item.Options)
	if err != nil {
		return Result{ItemID: item.ItemID, Status: StatusError, Err: err}
	}
	if !result.Success {
		return Result{ItemID: item.ItemID, Status: StatusError, Result: result, Err: fmt.Errorf("%s", result.Error)}
	}
	return Result{ItemID: item.ItemID, Status: StatusSuccess, Result: result}
}

// gracePeriod bounds how long TerminateAll waits for in-flight items to
// abandon work on job-level cancellation (spec §5: "within a bounded
// grace period (<=5s)").
const gracePeriod = 5 * time.Second
