// Package mcpserver exposes internal/ingestor.Service's Core API over
// the Model Context Protocol (spec §6: "MCP ... is out of scope; this
// document defines the Core API those collaborators would call"), so
// an MCP client drives ingest/ingestBatch/getJob/listJobs/cancel/query
// exactly as the CLI does.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DrunkOnJava/ingestor-service/internal/ingestor"
	"github.com/DrunkOnJava/ingestor-service/internal/process"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
	"github.com/DrunkOnJava/ingestor-service/pkg/version"
)

// Server bridges an ingestor.Service to MCP clients.
type Server struct {
	mcp    *mcp.Server
	svc    *ingestor.Service
	logger *slog.Logger
}

// NewServer builds a Server over svc and registers its tools.
func NewServer(svc *ingestor.Service) *Server {
	s := &Server{
		svc:    svc,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "ingestor",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest",
		Description: "Run one file or inline body through the content pipeline: detection, chunking, and entity extraction.",
	}, s.handleIngest)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_batch",
		Description: "Run many items through BatchEngine as one job, blocking until it reaches a terminal state.",
	}, s.handleIngestBatch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_job",
		Description: "Look up a ProcessingJob's current state by id.",
	}, s.handleGetJob)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List recent ProcessingJobs, optionally filtered by state.",
	}, s.handleListJobs)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Cancel a running job; a no-op if it already finished.",
	}, s.handleCancelJob)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query",
		Description: "Run a read-only SELECT against the store.",
	}, s.handleQuery)
}

// IngestInput is the ingest tool's argument schema.
type IngestInput struct {
	Path            string `json:"path,omitempty" jsonschema:"path to a file on disk; mutually exclusive with body"`
	Body            string `json:"body,omitempty" jsonschema:"inline content to ingest; mutually exclusive with path"`
	Filename        string `json:"filename,omitempty" jsonschema:"filename hint used for type detection when body is set"`
	ExtractEntities bool   `json:"extract_entities,omitempty" jsonschema:"accepted but not consulted: entity extraction always runs"`
	EnableChunking  bool   `json:"enable_chunking,omitempty" jsonschema:"split oversized content into chunks; false or omitted stores the body as one chunk"`
	ContinueOnError bool   `json:"continue_on_error,omitempty" jsonschema:"don't fail the whole call on a recoverable error"`
}

// IngestOutput is the ingest tool's result schema.
type IngestOutput struct {
	ContentID string   `json:"content_id"`
	Chunks    int      `json:"chunks"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, in IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if in.Path == "" && in.Body == "" {
		return nil, IngestOutput{}, NewInvalidParamsError("one of path or body is required")
	}

	result, err := s.svc.Ingest(ctx, process.Input{
		Path:     in.Path,
		Body:     []byte(in.Body),
		Filename: in.Filename,
	}, ingestor.IngestOptions{
		ExtractEntities: in.ExtractEntities,
		EnableChunking:  in.EnableChunking,
		ContinueOnError: in.ContinueOnError,
	})
	if err != nil {
		return nil, IngestOutput{}, mapError(err)
	}

	return nil, IngestOutput{
		ContentID: result.ContentID,
		Chunks:    result.Chunks,
		Success:   result.Success,
		Error:     result.Error,
		EntityIDs: result.EntityIDs,
	}, nil
}

// BatchItemInput is one item of the ingest_batch tool's item list.
type BatchItemInput struct {
	ID       string `json:"id,omitempty" jsonschema:"caller-assigned item id, defaults to a generated uuid"`
	Path     string `json:"path,omitempty" jsonschema:"path to a file on disk; mutually exclusive with body"`
	Body     string `json:"body,omitempty" jsonschema:"inline content; mutually exclusive with path"`
	Filename string `json:"filename,omitempty"`
	Priority int    `json:"priority,omitempty" jsonschema:"higher values dispatch first when prioritize is true"`
}

// IngestBatchInput is the ingest_batch tool's argument schema.
type IngestBatchInput struct {
	Items              []BatchItemInput `json:"items" jsonschema:"items to process as one job"`
	MaxConcurrency     int              `json:"max_concurrency,omitempty" jsonschema:"max concurrent executors, default NumCPU-1"`
	ContinueOnError    bool             `json:"continue_on_error,omitempty"`
	PrioritizeItems    bool             `json:"prioritize_items,omitempty"`
	DynamicConcurrency bool             `json:"dynamic_concurrency,omitempty"`
}

// IngestBatchOutput is the ingest_batch tool's result schema.
type IngestBatchOutput struct {
	JobID           string            `json:"job_id"`
	State           string            `json:"state"`
	ItemsTotal      int               `json:"items_total"`
	ItemsSuccessful int               `json:"items_successful"`
	ItemsFailed     int               `json:"items_failed"`
	ErrorSummary    string            `json:"error_summary,omitempty"`
	Results         map[string]string `json:"item_errors,omitempty"`
}

func (s *Server) handleIngestBatch(ctx context.Context, _ *mcp.CallToolRequest, in IngestBatchInput) (*mcp.CallToolResult, IngestBatchOutput, error) {
	if len(in.Items) == 0 {
		return nil, IngestBatchOutput{}, NewInvalidParamsError("items must not be empty")
	}

	items := make([]ingestor.BatchItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = ingestor.BatchItem{
			ID:       it.ID,
			Priority: it.Priority,
			Input:    process.Input{Path: it.Path, Body: []byte(it.Body), Filename: it.Filename},
		}
	}

	handle := s.svc.IngestBatch(ctx, items, ingestor.BatchOptions{
		MaxConcurrency:     in.MaxConcurrency,
		ContinueOnError:    in.ContinueOnError,
		PrioritizeItems:    in.PrioritizeItems,
		DynamicConcurrency: in.DynamicConcurrency,
	})

	select {
	case result := <-handle.Done:
		itemErrors := make(map[string]string)
		for id, r := range result.Results {
			if !r.Success {
				itemErrors[id] = r.Error
			}
		}
		return nil, IngestBatchOutput{
			JobID:           result.JobID,
			State:           string(result.State),
			ItemsTotal:      result.ItemsTotal,
			ItemsSuccessful: result.ItemsSuccessful,
			ItemsFailed:     result.ItemsFailed,
			ErrorSummary:    result.ErrorSummary,
			Results:         itemErrors,
		}, nil
	case <-ctx.Done():
		return nil, IngestBatchOutput{JobID: handle.JobID}, mapError(ctx.Err())
	}
}

// GetJobInput is the get_job tool's argument schema.
type GetJobInput struct {
	JobID string `json:"job_id" jsonschema:"the job id returned by ingest_batch"`
}

// JobOutput is a ProcessingJob rendered for MCP transport.
type JobOutput struct {
	ID              string `json:"id"`
	State           string `json:"state"`
	Progress        int    `json:"progress"`
	ItemsTotal      int    `json:"items_total"`
	ItemsSuccessful int    `json:"items_successful"`
	ItemsFailed     int    `json:"items_failed"`
	ErrorSummary    string `json:"error_summary,omitempty"`
}

func (s *Server) handleGetJob(ctx context.Context, _ *mcp.CallToolRequest, in GetJobInput) (*mcp.CallToolResult, JobOutput, error) {
	if in.JobID == "" {
		return nil, JobOutput{}, NewInvalidParamsError("job_id is required")
	}
	job, err := s.svc.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, JobOutput{}, mapError(err)
	}
	return nil, jobToOutput(job), nil
}

// ListJobsInput is the list_jobs tool's argument schema.
type ListJobsInput struct {
	State string `json:"state,omitempty" jsonschema:"filter by state: pending, processing, completed, failed, canceled"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum jobs to return, default 50"`
}

// ListJobsOutput is the list_jobs tool's result schema.
type ListJobsOutput struct {
	Jobs []JobOutput `json:"jobs"`
}

func (s *Server) handleListJobs(ctx context.Context, _ *mcp.CallToolRequest, in ListJobsInput) (*mcp.CallToolResult, ListJobsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.svc.ListJobs(ctx, store.JobState(in.State), limit)
	if err != nil {
		return nil, ListJobsOutput{}, mapError(err)
	}
	out := ListJobsOutput{Jobs: make([]JobOutput, len(jobs))}
	for i := range jobs {
		out.Jobs[i] = jobToOutput(&jobs[i])
	}
	return nil, out, nil
}

func jobToOutput(j *store.Job) JobOutput {
	return JobOutput{
		ID:              j.ID,
		State:           string(j.State),
		Progress:        j.Progress,
		ItemsTotal:      j.ItemsTotal,
		ItemsSuccessful: j.ItemsSuccessful,
		ItemsFailed:     j.ItemsFailed,
		ErrorSummary:    j.ErrorSummary,
	}
}

// CancelJobInput is the cancel_job tool's argument schema.
type CancelJobInput struct {
	JobID string `json:"job_id"`
}

// CancelJobOutput acknowledges a cancel request.
type CancelJobOutput struct {
	Requested bool `json:"requested"`
}

func (s *Server) handleCancelJob(_ context.Context, _ *mcp.CallToolRequest, in CancelJobInput) (*mcp.CallToolResult, CancelJobOutput, error) {
	if in.JobID == "" {
		return nil, CancelJobOutput{}, NewInvalidParamsError("job_id is required")
	}
	s.svc.Cancel(in.JobID)
	return nil, CancelJobOutput{Requested: true}, nil
}

// QueryInput is the query tool's argument schema.
type QueryInput struct {
	SQL string `json:"sql" jsonschema:"a read-only SELECT or WITH statement"`
}

// QueryOutput is the query tool's result schema.
type QueryOutput struct {
	Rows []map[string]any `json:"rows"`
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	if in.SQL == "" {
		return nil, QueryOutput{}, NewInvalidParamsError("sql is required")
	}
	rows, err := s.svc.Query(ctx, in.SQL)
	if err != nil {
		return nil, QueryOutput{}, mapError(err)
	}
	return nil, QueryOutput{Rows: rows}, nil
}
