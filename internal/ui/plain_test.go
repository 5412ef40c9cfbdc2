package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

func TestPlainRenderer_HandleEvent_ItemLifecycle(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.HandleEvent(batch.Event{Type: batch.EventJobStarted, JobID: "job-1"})
	r.HandleEvent(batch.Event{Type: batch.EventItemStarted, JobID: "job-1", ItemID: "a"})
	r.HandleEvent(batch.Event{Type: batch.EventItemCompleted, JobID: "job-1", ItemID: "a"})
	r.HandleEvent(batch.Event{Type: batch.EventJobProgress, JobID: "job-1", Percentage: 100})

	out := buf.String()
	assert.Contains(t, out, "job-1 started")
	assert.Contains(t, out, "item a started")
	assert.Contains(t, out, "item a done")
	assert.Contains(t, out, "100%")
}

func TestPlainRenderer_HandleEvent_ItemFailed(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.HandleEvent(batch.Event{Type: batch.EventItemFailed, ItemID: "bad", Err: assertErr{}})

	assert.Contains(t, buf.String(), "item bad FAILED")
}

func TestPlainRenderer_Complete_SummarizesResult(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(batch.Result{State: store.JobStateCompleted, ItemsTotal: 3, ItemsSuccessful: 2, ItemsFailed: 1})

	out := buf.String()
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "2/3 succeeded")
	assert.Contains(t, out, "1 failed")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
