// Package ingestor wires Store, ContentProcessor, WorkerPool, and
// BatchEngine into the Core API surface spec §6 names as consumed by
// HTTP, CLI, and MCP: ingest, ingestBatch, cancel, getJob, query.
package ingestor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
	"github.com/DrunkOnJava/ingestor-service/internal/chunk"
	"github.com/DrunkOnJava/ingestor-service/internal/config"
	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
	"github.com/DrunkOnJava/ingestor-service/internal/extract"
	"github.com/DrunkOnJava/ingestor-service/internal/normalize"
	"github.com/DrunkOnJava/ingestor-service/internal/process"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
	"github.com/google/uuid"
)

// Service is the Core API (spec §6): a single entry point shared by every
// external collaborator (HTTP, CLI, MCP). It owns the Store and holds one
// BatchEngine for the process's lifetime.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	processor *process.Processor
	engine    *batch.Engine

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds a Service from cfg: connects the Store, wires the
// Extractor cascade (LLMClient when cfg.Extract.LLMEndpoint is set, with
// RuleExtractor as fallback per spec §4.4), and constructs the
// ContentProcessor and BatchEngine over it.
func New(cfg *config.Config) (*Service, error) {
	dbPath := cfg.Store.DefaultDatabase
	if dbPath != "" && dbPath != ":memory:" {
		dbPath = filepath.Join(cfg.Store.DBDir, cfg.Store.DefaultDatabase+".sqlite")
	}
	storeCfg := store.DefaultConfig(dbPath)
	storeCfg.JournalMode = cfg.Store.JournalMode
	storeCfg.AutoVacuum = cfg.Store.AutoVacuum

	s, err := store.Connect(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting store: %w", err)
	}

	var llm *extract.LLMClient
	if cfg.Extract.LLMEndpoint != "" {
		llm = extract.NewLLMClient(cfg.Extract.LLMEndpoint, cfg.Extract.LLMAPIKey, cfg.Extract.LLMModel,
			cfg.Extract.ClaudeTimeout, cfg.Extract.ClaudeMaxRetries)
	}
	extractor := extract.NewExtractor(llm, extract.NewRuleExtractor())
	normalizer := normalize.NewNormalizer(normalize.DefaultCacheSize)
	processor := process.NewProcessor(s, extractor, normalizer)

	factory := func() (*process.Processor, func() error, error) {
		// Each executor gets its own Store connection onto the same file
		// (spec §4.7: "own Store connection", "no shared memory between
		// executors"); SQLite's WAL mode lets the shared writer path
		// funnel safely through Store.Tx regardless of which connection
		// issues it.
		workerStore, err := store.Connect(storeCfg)
		if err != nil {
			return nil, nil, err
		}
		return process.NewProcessor(workerStore, extractor, normalizer), workerStore.Close, nil
	}
	engine := batch.NewEngine(factory, s)

	return &Service{
		cfg:       cfg,
		store:     s,
		processor: processor,
		engine:    engine,
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Close releases the Service's Store connection.
func (svc *Service) Close() error {
	return svc.store.Close()
}

// Events is the BatchEngine's fan-out channel (spec §4.9), shared across
// every job this Service runs; consumers filter by Event.JobID.
func (svc *Service) Events() <-chan batch.Event {
	return svc.engine.Events()
}

// IngestOptions mirrors spec §6's "processingOptions" request field.
// ExtractEntities is not consulted: entity extraction always runs.
type IngestOptions struct {
	ExtractEntities bool
	EnableChunking  bool
	ChunkSize       int
	ChunkOverlap    int
	ChunkStrategy   config.ChunkStrategy
	ContinueOnError bool
}

func (o IngestOptions) toProcessOptions(cfg *config.Config) process.Options {
	chunkOpts := chunk.Options{
		MaxSize:  cfg.Chunk.MaxChunkSize,
		Overlap:  cfg.Chunk.ChunkOverlap,
		Strategy: cfg.Chunk.Strategy,
	}
	if o.ChunkSize > 0 {
		chunkOpts.MaxSize = o.ChunkSize
	}
	if o.ChunkOverlap > 0 {
		chunkOpts.Overlap = o.ChunkOverlap
	}
	if o.ChunkStrategy != "" {
		chunkOpts.Strategy = o.ChunkStrategy
	}
	if !o.EnableChunking {
		chunkOpts.MaxSize = 1 << 62 // effectively disables chunking
	}

	return process.Options{
		ChunkOptions: chunkOpts,
		ExtractOptions: extract.Options{
			UseLLM:              true,
			ConfidenceThreshold: cfg.Extract.EntityConfidenceThreshold,
			MaxEntities:         cfg.Extract.EntityMaxCount,
		},
		NormalizeOpts: normalize.Options{
			ConfidenceThreshold: cfg.Extract.EntityConfidenceThreshold,
			MaxEntities:         cfg.Extract.EntityMaxCount,
		},
		ContinueOnError: o.ContinueOnError,
	}
}

// Ingest runs spec §6's `ingest(input, options) → ContentProcessingResult`.
func (svc *Service) Ingest(ctx context.Context, in process.Input, opts IngestOptions) (process.Result, error) {
	if int64(len(in.Body)) > svc.cfg.Limits.MaxFileSize {
		return process.Result{}, ingesterrors.ValidationError(
			fmt.Sprintf("input exceeds max file size of %d bytes", svc.cfg.Limits.MaxFileSize), nil)
	}
	return svc.processor.Process(ctx, in, opts.toProcessOptions(svc.cfg))
}

// BatchOptions mirrors spec §4.9's BatchEngine options plus the shared
// IngestOptions applied to every item.
type BatchOptions struct {
	Ingest               IngestOptions
	MaxConcurrency       int
	ContinueOnError      bool
	PrioritizeItems      bool
	DynamicConcurrency   bool
	WorkerMemoryLimitMiB int
}

// BatchItem is spec §3's BatchItem.
type BatchItem struct {
	ID       string
	Input    process.Input
	Priority int
}

// Handle tracks one in-flight ingestBatch call: the assigned job id and
// the channel its terminal batch.Result is delivered on.
type Handle struct {
	JobID string
	Done  <-chan batch.Result
}

// IngestBatch runs spec §6's `ingestBatch(items, options) → BatchResult`
// asynchronously, returning a Handle immediately so the caller can poll
// GetJob(jobId), drain Events(), or call Cancel(jobId) while it runs.
func (svc *Service) IngestBatch(ctx context.Context, items []BatchItem, opts BatchOptions) *Handle {
	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(ctx)

	svc.mu.Lock()
	svc.cancels[jobID] = cancel
	svc.mu.Unlock()

	batchItems := make([]batch.Item, len(items))
	procOpts := opts.Ingest.toProcessOptions(svc.cfg)
	for i, it := range items {
		batchItems[i] = batch.Item{
			ItemID:   it.ID,
			Priority: it.Priority,
			Input:    it.Input,
			Options:  procOpts,
		}
	}

	done := make(chan batch.Result, 1)
	go func() {
		defer cancel()
		defer func() {
			svc.mu.Lock()
			delete(svc.cancels, jobID)
			svc.mu.Unlock()
		}()

		result, err := svc.engine.ProcessBatch(jobCtx, batchItems, batch.Options{
			JobID:                jobID,
			MaxConcurrency:       opts.MaxConcurrency,
			ContinueOnError:      opts.ContinueOnError,
			PrioritizeItems:      opts.PrioritizeItems,
			DynamicConcurrency:   opts.DynamicConcurrency,
			WorkerMemoryLimitMiB: opts.WorkerMemoryLimitMiB,
		})
		if err != nil {
			result.JobID = jobID
			result.ErrorSummary = err.Error()
		}
		done <- result
	}()

	return &Handle{JobID: jobID, Done: done}
}

// Cancel runs spec §6's `cancel(jobId) → void`: it is a no-op if jobId
// isn't currently running (already finished, or never existed).
func (svc *Service) Cancel(jobID string) {
	svc.mu.Lock()
	cancel, ok := svc.cancels[jobID]
	svc.mu.Unlock()
	if ok {
		cancel()
	}
}

// GetJob runs spec §6's `getJob(jobId) → ProcessingJob`.
func (svc *Service) GetJob(ctx context.Context, jobID string) (*store.Job, error) {
	return svc.store.GetJob(ctx, jobID)
}

// ListJobs exposes the Store's job registry for CLI/MCP listing.
func (svc *Service) ListJobs(ctx context.Context, state store.JobState, limit int) ([]store.Job, error) {
	return svc.store.ListJobs(ctx, state, limit)
}

// Query runs spec §6's `query(sql, params) — read-only passthrough to
// Store, rejects non-SELECT`.
func (svc *Service) Query(ctx context.Context, sqlQuery string, args ...any) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(sqlQuery))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return nil, ingesterrors.ValidationError("query must be a read-only SELECT statement", nil)
	}

	rows, err := svc.store.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

