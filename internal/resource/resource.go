// Package resource implements ResourceMonitor (spec §4.8): periodic
// CPU/memory sampling and the concurrency-advice formula BatchEngine
// consults when dynamicConcurrency is enabled.
package resource

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// SampleInterval is the fixed cadence spec §4.8 samples at.
const SampleInterval = 5 * time.Second

// Snapshot is one ResourceMonitor reading (spec §4.8 "snapshot event").
type Snapshot struct {
	CPUPercent     float64
	FreeMemoryMiB  int
	TotalMemoryMiB int
	Cores          int
	SampledAt      time.Time
}

// Monitor samples host resources on SampleInterval and emits Snapshots,
// grounded on the teacher's internal/preflight checker shape but backed
// by real host figures (gopsutil) instead of runtime.MemStats heuristics.
type Monitor struct {
	snapshots chan Snapshot
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewMonitor constructs a Monitor. Call Start to begin sampling.
func NewMonitor() *Monitor {
	return &Monitor{
		snapshots: make(chan Snapshot, 8),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Snapshots is the channel BatchEngine reads resource events from.
func (m *Monitor) Snapshots() <-chan Snapshot { return m.snapshots }

// Start begins sampling in a background goroutine. Non-blocking; call
// Stop to end sampling.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

// Stop ends sampling and waits for the background goroutine to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	if snap, err := Sample(ctx); err == nil {
		m.emit(snap)
	}

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := Sample(ctx)
			if err != nil {
				continue
			}
			m.emit(snap)
		}
	}
}

func (m *Monitor) emit(snap Snapshot) {
	select {
	case m.snapshots <- snap:
	default:
		// Slow consumer: drop rather than block sampling (spec says
		// "emits a snapshot event", not "guarantees delivery").
	}
}

// Sample takes one reading of CPU usage (1-min load average / cores *
// 100, per spec §4.8) and free/total memory.
func Sample(ctx context.Context) (Snapshot, error) {
	cores := runtime.NumCPU()

	cpuPercent, err := cpuPercentFromLoad(ctx, cores)
	if err != nil {
		// Fall back to gopsutil's own instantaneous percent sample when
		// /proc/loadavg is unavailable (e.g. non-Linux, containers).
		percents, pErr := cpu.PercentWithContext(ctx, 0, false)
		if pErr != nil || len(percents) == 0 {
			return Snapshot{}, err
		}
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		CPUPercent:     cpuPercent,
		FreeMemoryMiB:  int(vm.Available / (1024 * 1024)),
		TotalMemoryMiB: int(vm.Total / (1024 * 1024)),
		Cores:          cores,
		SampledAt:      time.Now(),
	}, nil
}

func cpuPercentFromLoad(ctx context.Context, cores int) (float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if cores <= 0 {
		cores = 1
	}
	return (avg.Load1 / float64(cores)) * 100, nil
}

// AdviseConcurrency implements spec §4.8's target-concurrency formula:
// shrink under CPU pressure, grow under CPU slack, then clamp to what
// free memory can host given workerMemoryLimitMiB.
func AdviseConcurrency(current int, snap Snapshot, workerMemoryLimitMiB int) int {
	target := current

	switch {
	case snap.CPUPercent > 90:
		target = current / 2
	case snap.CPUPercent > 70:
		target = (current * 3) / 4
	case snap.CPUPercent < 30:
		target = current + 2
		if max := snap.Cores * 2; target > max {
			target = max
		}
	}
	if target < 1 {
		target = 1
	}

	if workerMemoryLimitMiB > 0 {
		memCap := snap.FreeMemoryMiB / workerMemoryLimitMiB
		if memCap < target {
			target = memCap
		}
	}
	if target < 1 {
		target = 1
	}
	return target
}
