package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrunkOnJava/ingestor-service/internal/extract"
	"github.com/DrunkOnJava/ingestor-service/internal/normalize"
	"github.com/DrunkOnJava/ingestor-service/internal/process"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

func testFactory(t *testing.T) Factory {
	t.Helper()
	return func() (*process.Processor, func() error, error) {
		s, err := store.Connect(store.DefaultConfig(":memory:"))
		if err != nil {
			return nil, nil, err
		}
		extractor := extract.NewExtractor(nil, extract.NewRuleExtractor())
		normalizer := normalize.NewNormalizer(0)
		return process.NewProcessor(s, extractor, normalizer), s.Close, nil
	}
}

func TestPool_CreateAssignTerminate(t *testing.T) {
	ctx := context.Background()
	p := NewPool(testFactory(t), 0)
	assert.Equal(t, DefaultMemoryLimitMiB, p.MemoryLimitMiB())

	id, err := p.CreateIdleWorker(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Size())

	item := Item{
		ItemID: "item-1",
		Input:  process.Input{Body: []byte("Marie Curie worked in Paris."), Filename: "a.txt"},
	}
	require.NoError(t, p.AssignWork(id, item))

	select {
	case res := <-p.Results():
		assert.Equal(t, "item-1", res.ItemID)
		assert.Equal(t, StatusSuccess, res.Status)
		assert.True(t, res.Result.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker result")
	}

	p.Terminate(id)
	assert.Equal(t, 0, p.Size())
}

func TestPool_AssignWork_UnknownWorker_Errors(t *testing.T) {
	p := NewPool(testFactory(t), 0)
	err := p.AssignWork("nonexistent", Item{ItemID: "x"})
	assert.Error(t, err)
}

func TestPool_TerminateAll_EmptiesPool(t *testing.T) {
	ctx := context.Background()
	p := NewPool(testFactory(t), 0)

	for i := 0; i < 3; i++ {
		_, err := p.CreateIdleWorker(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.Size())

	p.TerminateAll()
	assert.Equal(t, 0, p.Size())
}
