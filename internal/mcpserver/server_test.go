package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrunkOnJava/ingestor-service/internal/config"
	"github.com/DrunkOnJava/ingestor-service/internal/ingestor"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Store.DefaultDatabase = ":memory:"
	svc, err := ingestor.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return NewServer(svc)
}

func TestHandleIngest_InlineBody_Succeeds(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleIngest(context.Background(), nil, IngestInput{
		Body: "Marie Curie worked in Paris.", Filename: "a.txt",
		ExtractEntities: true, EnableChunking: true, ContinueOnError: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.ContentID)
}

func TestHandleIngest_NoPathOrBody_RejectedWithInvalidParams(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleIngest(context.Background(), nil, IngestInput{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, toolErr.Code)
}

func TestHandleIngestBatch_CompletesAndReturnsResult(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleIngestBatch(context.Background(), nil, IngestBatchInput{
		Items: []BatchItemInput{
			{Body: "some text about nothing notable", Filename: "a.txt"},
		},
		ContinueOnError: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", out.State)
	assert.Equal(t, 1, out.ItemsSuccessful)
}

func TestHandleGetJob_AfterBatch_ReturnsJob(t *testing.T) {
	s := newTestServer(t)
	_, batchOut, err := s.handleIngestBatch(context.Background(), nil, IngestBatchInput{
		Items:           []BatchItemInput{{Body: "text", Filename: "a.txt"}},
		ContinueOnError: true,
	})
	require.NoError(t, err)

	_, jobOut, err := s.handleGetJob(context.Background(), nil, GetJobInput{JobID: batchOut.JobID})
	require.NoError(t, err)
	assert.Equal(t, "completed", jobOut.State)
}

func TestHandleCancelJob_UnknownID_IsNoop(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleCancelJob(context.Background(), nil, CancelJobInput{JobID: "does-not-exist"})
	require.NoError(t, err)
	assert.True(t, out.Requested)
}

func TestHandleQuery_RejectsNonSelect(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleQuery(context.Background(), nil, QueryInput{SQL: "DELETE FROM content"})
	require.Error(t, err)
}

func TestHandleQuery_EmptySQL_RejectedWithInvalidParams(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleQuery(context.Background(), nil, QueryInput{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, toolErr.Code)
}
