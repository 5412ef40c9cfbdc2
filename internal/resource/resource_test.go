package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_ReturnsPositiveFigures(t *testing.T) {
	snap, err := Sample(context.Background())
	require.NoError(t, err)
	assert.Greater(t, snap.Cores, 0)
	assert.GreaterOrEqual(t, snap.TotalMemoryMiB, 0)
	assert.False(t, snap.SampledAt.IsZero())
}

func TestAdviseConcurrency_HighCPU_Halves(t *testing.T) {
	snap := Snapshot{CPUPercent: 95, FreeMemoryMiB: 100000, Cores: 8}
	assert.Equal(t, 4, AdviseConcurrency(8, snap, 0))
}

func TestAdviseConcurrency_ModerateCPU_ThreeQuarters(t *testing.T) {
	snap := Snapshot{CPUPercent: 75, FreeMemoryMiB: 100000, Cores: 8}
	assert.Equal(t, 6, AdviseConcurrency(8, snap, 0))
}

func TestAdviseConcurrency_LowCPU_GrowsCappedAtDoubleCores(t *testing.T) {
	snap := Snapshot{CPUPercent: 10, FreeMemoryMiB: 100000, Cores: 4}
	assert.Equal(t, 6, AdviseConcurrency(4, snap, 0))
	assert.Equal(t, 8, AdviseConcurrency(8, snap, 0)) // clamped to cores*2
}

func TestAdviseConcurrency_FloorsAtOne(t *testing.T) {
	snap := Snapshot{CPUPercent: 95, FreeMemoryMiB: 100000, Cores: 2}
	assert.Equal(t, 1, AdviseConcurrency(1, snap, 0))
}

func TestAdviseConcurrency_ClampsToMemory(t *testing.T) {
	snap := Snapshot{CPUPercent: 50, FreeMemoryMiB: 1024, Cores: 8}
	// 1024 MiB free / 512 MiB per worker = 2, below the unclamped target of 8.
	assert.Equal(t, 2, AdviseConcurrency(8, snap, 512))
}

func TestMonitor_StartStop_EmitsSnapshot(t *testing.T) {
	m := NewMonitor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	select {
	case snap := <-m.Snapshots():
		assert.Greater(t, snap.Cores, 0)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}
	m.Stop()
}
