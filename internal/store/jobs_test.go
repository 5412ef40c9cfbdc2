package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJobAndGetJob_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j := Job{
		ID:         uuid.NewString(),
		Kind:       JobKindBatch,
		State:      JobStatePending,
		StartedAt:  time.Now().UTC(),
		ItemsTotal: 10,
	}
	require.NoError(t, s.SaveJob(ctx, j))

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, JobKindBatch, got.Kind)
	assert.Equal(t, JobStatePending, got.State)
	assert.Equal(t, 10, got.ItemsTotal)
	assert.Nil(t, got.EndedAt)
}

func TestSaveJob_UpdatesOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, s.SaveJob(ctx, Job{ID: id, Kind: JobKindAnalyze, State: JobStatePending, StartedAt: time.Now().UTC()}))

	ended := time.Now().UTC()
	require.NoError(t, s.SaveJob(ctx, Job{
		ID: id, Kind: JobKindAnalyze, State: JobStateCompleted, StartedAt: time.Now().UTC(),
		EndedAt: &ended, ItemsSuccessful: 3,
	}))

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStateCompleted, got.State)
	assert.Equal(t, 3, got.ItemsSuccessful)
	require.NotNil(t, got.EndedAt)
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	require.Error(t, err)
}

func TestListJobs_FiltersByStateAndOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	require.NoError(t, s.SaveJob(ctx, Job{ID: uuid.NewString(), Kind: JobKindBatch, State: JobStateCompleted, StartedAt: older}))
	require.NoError(t, s.SaveJob(ctx, Job{ID: uuid.NewString(), Kind: JobKindBatch, State: JobStateCompleted, StartedAt: newer}))
	require.NoError(t, s.SaveJob(ctx, Job{ID: uuid.NewString(), Kind: JobKindBatch, State: JobStateFailed, StartedAt: newer}))

	completed, err := s.ListJobs(ctx, JobStateCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.True(t, completed[0].StartedAt.After(completed[1].StartedAt) || completed[0].StartedAt.Equal(completed[1].StartedAt))

	all, err := s.ListJobs(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
