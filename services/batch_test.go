package services

import (
	"errors"
	"testing"
	"time"

	"coda/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBatch creates jobs for n inputs written into temp dirs
func newTestBatch(t *testing.T, n int) []*types.ConversionJob {
	t.Helper()
	var inputs []string
	for i := 0; i < n; i++ {
		job := newTestJob(t, "clip.mp4")
		inputs = append(inputs, job.InputPath)
	}
	return NewBatchJobs(inputs, t.TempDir(), false, "mp3")
}

// TestBatchAllSucceed tests that a batch of N succeeding jobs yields
// exactly N Finished events and overall progress reaching 100%
func TestBatchAllSucceed(t *testing.T) {
	const n = 3

	runner := &fakeRunner{
		captureOut: probeOutput,
		steps: []*fakeStep{
			{createOutput: true},
			{createOutput: true},
			{createOutput: true},
		},
	}
	batch := NewBatchConverter(NewConverter(runner, "ffmpeg"))
	jobs := newTestBatch(t, n)

	var updates []BatchUpdate
	batch.Run(jobs, func(update BatchUpdate) {
		updates = append(updates, update)
	})

	finished := 0
	for _, update := range updates {
		if update.Event.Kind == types.EventFinished {
			finished++
		}
	}
	assert.Equal(t, n, finished)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, n, last.Done)
	assert.InDelta(t, 100.0, last.Overall, 0.001)

	for _, job := range jobs {
		assert.Equal(t, types.JobStatusCompleted, job.Status)
		assert.Equal(t, 100.0, job.Progress)
		assert.FileExists(t, job.OutputPath)
	}
}

// TestBatchContinuesPastFailures tests that one job's failure never aborts
// its siblings
func TestBatchContinuesPastFailures(t *testing.T) {
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps: []*fakeStep{
			{exitErr: errors.New("exit status 1")},
			{createOutput: true},
		},
	}
	batch := NewBatchConverter(NewConverter(runner, "ffmpeg"))

	// Two jobs, run them one at a time so the scripted steps map
	// deterministically onto the jobs
	first := newTestBatch(t, 1)
	second := newTestBatch(t, 1)

	var firstUpdates, secondUpdates []BatchUpdate
	batch.Run(first, func(u BatchUpdate) { firstUpdates = append(firstUpdates, u) })
	batch.Run(second, func(u BatchUpdate) { secondUpdates = append(secondUpdates, u) })

	require.NotEmpty(t, firstUpdates)
	assert.Equal(t, types.EventError, firstUpdates[len(firstUpdates)-1].Event.Kind)
	assert.Equal(t, types.JobStatusFailed, first[0].Status)

	require.NotEmpty(t, secondUpdates)
	assert.Equal(t, types.EventFinished, secondUpdates[len(secondUpdates)-1].Event.Kind)
	assert.Equal(t, types.JobStatusCompleted, second[0].Status)
}

// TestBatchCancelAll tests that cancelling the batch concludes every job
// without a Finished event
func TestBatchCancelAll(t *testing.T) {
	const n = 3

	steps := make([]*fakeStep, n)
	for i := range steps {
		steps[i] = &fakeStep{block: make(chan struct{})}
	}
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps:      steps,
		started:    make(chan []string, n),
	}
	batch := NewBatchConverter(NewConverter(runner, "ffmpeg"))
	jobs := newTestBatch(t, n)

	// Cancel once every encode subprocess is live
	go func() {
		for i := 0; i < n; i++ {
			<-runner.started
		}
		batch.CancelAll()
	}()

	done := make(chan []BatchUpdate, 1)
	go func() {
		var updates []BatchUpdate
		batch.Run(jobs, func(update BatchUpdate) {
			updates = append(updates, update)
		})
		done <- updates
	}()

	var updates []BatchUpdate
	select {
	case updates = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not conclude after CancelAll")
	}

	for _, update := range updates {
		assert.NotEqual(t, types.EventFinished, update.Event.Kind)
	}
	for _, job := range jobs {
		assert.Equal(t, types.JobStatusCancelled, job.Status)
	}

	require.NotEmpty(t, updates)
	assert.Equal(t, n, updates[len(updates)-1].Done)
}

// TestBatchEmpty tests that an empty batch returns immediately
func TestBatchEmpty(t *testing.T) {
	batch := NewBatchConverter(NewConverter(&fakeRunner{}, "ffmpeg"))

	calls := 0
	batch.Run(nil, func(BatchUpdate) { calls++ })
	assert.Zero(t, calls)
}
