package services

import (
	"testing"
	"time"

	"coda/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueue builds a queue backed by the fake runner and memory store
func newTestQueue(t *testing.T, runner *fakeRunner) (JobQueue, JobStore) {
	t.Helper()
	store := NewMemoryJobStore()
	queue := NewJobQueue(2, NewConverter(runner, "ffmpeg"), nil, store)
	queue.Start()
	return queue, store
}

// waitForStatus polls until the job reaches a terminal status
func waitForStatus(t *testing.T, queue JobQueue, jobID string, want types.JobStatus) *types.ConversionJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := queue.GetJob(jobID)
		require.True(t, ok)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

// TestJobQueueConversion tests the queued-to-completed lifecycle
func TestJobQueueConversion(t *testing.T) {
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps:      []*fakeStep{{createOutput: true}},
	}
	queue, store := newTestQueue(t, runner)

	input := newTestJob(t, "clip.mp4")
	jobs := queue.AddBatch([]string{input.InputPath}, input.OutputDir, false, "mp3")
	require.Len(t, jobs, 1)

	job := waitForStatus(t, queue, jobs[0].ID, types.JobStatusCompleted)
	assert.Equal(t, 100.0, job.Progress)
	assert.FileExists(t, job.OutputPath)
	assert.NotNil(t, job.CompletedAt)

	// The terminal state is persisted
	record, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCompleted, record.Status)
}

// TestJobQueueFailure tests that a failed conversion surfaces its error and
// leaves sibling jobs alone
func TestJobQueueFailure(t *testing.T) {
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps: []*fakeStep{
			{lines: []string{"Invalid data found"}, exitErr: assert.AnError},
		},
	}
	queue, _ := newTestQueue(t, runner)

	input := newTestJob(t, "broken.mp4")
	jobs := queue.AddBatch([]string{input.InputPath}, input.OutputDir, false, "mp3")

	job := waitForStatus(t, queue, jobs[0].ID, types.JobStatusFailed)
	assert.Contains(t, job.Error, "Invalid data found")

	stats := queue.Stats()
	assert.Equal(t, 1, stats.Failed)
}

// TestJobQueueCancelQueued tests cancelling a job before a worker picks it up
func TestJobQueueCancelQueued(t *testing.T) {
	// Block both workers so further jobs stay queued
	blockers := []*fakeStep{
		{block: make(chan struct{})},
		{block: make(chan struct{})},
	}
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps:      blockers,
		started:    make(chan []string, 4),
	}
	queue, _ := newTestQueue(t, runner)

	var inputs []string
	outputDir := t.TempDir()
	for i := 0; i < 3; i++ {
		inputs = append(inputs, newTestJob(t, "clip.mp4").InputPath)
	}
	jobs := queue.AddBatch(inputs, outputDir, false, "mp3")

	// Two conversions occupy the workers; the third is still queued
	<-runner.started
	<-runner.started

	queued := jobs[2]
	assert.True(t, queue.CancelJob(queued.ID))

	job, ok := queue.GetJob(queued.ID)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCancelled, job.Status)

	// Only the two processing jobs remain cancellable
	assert.Equal(t, 2, queue.CancelAll())
}

// TestJobQueueCancelAll tests force-cancelling every active job
func TestJobQueueCancelAll(t *testing.T) {
	steps := []*fakeStep{
		{block: make(chan struct{})},
		{block: make(chan struct{})},
	}
	runner := &fakeRunner{
		captureOut: probeOutput,
		steps:      steps,
		started:    make(chan []string, 2),
	}
	queue, _ := newTestQueue(t, runner)

	var inputs []string
	outputDir := t.TempDir()
	for i := 0; i < 2; i++ {
		inputs = append(inputs, newTestJob(t, "clip.mp4").InputPath)
	}
	jobs := queue.AddBatch(inputs, outputDir, false, "mp3")

	<-runner.started
	<-runner.started

	assert.Equal(t, 2, queue.CancelAll())

	for _, job := range jobs {
		cancelled := waitForStatus(t, queue, job.ID, types.JobStatusCancelled)
		assert.NotEqual(t, types.JobStatusCompleted, cancelled.Status)
	}
}

// TestJobQueueReturnsSnapshots tests that jobs handed to callers are copies:
// mutating a returned record never touches the queue's live state, which
// workers keep updating under the queue's lock
func TestJobQueueReturnsSnapshots(t *testing.T) {
	store := NewMemoryJobStore()
	// Never started, so the job stays queued while we poke at the copies
	queue := NewJobQueue(1, NewConverter(&fakeRunner{}, "ffmpeg"), nil, store)

	input := newTestJob(t, "clip.mp4")
	jobs := queue.AddBatch([]string{input.InputPath}, input.OutputDir, false, "mp3")
	require.Len(t, jobs, 1)

	jobs[0].Status = types.JobStatusFailed
	jobs[0].Progress = 55

	job, ok := queue.GetJob(jobs[0].ID)
	require.True(t, ok)
	assert.NotSame(t, jobs[0], job)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	assert.Zero(t, job.Progress)

	job.Status = types.JobStatusCompleted

	all := queue.GetAllJobs()
	require.Len(t, all, 1)
	assert.NotSame(t, job, all[0])
	assert.Equal(t, types.JobStatusQueued, all[0].Status)
}

// TestJobQueueRestoresRecords tests that persisted jobs from an earlier run
// reappear, with stale in-flight states concluded as failed
func TestJobQueueRestoresRecords(t *testing.T) {
	store := NewMemoryJobStore()
	require.NoError(t, store.Save(&types.ConversionJob{
		ID:     "old-done",
		Status: types.JobStatusCompleted,
	}))
	require.NoError(t, store.Save(&types.ConversionJob{
		ID:     "old-inflight",
		Status: types.JobStatusProcessing,
	}))

	queue := NewJobQueue(1, NewConverter(&fakeRunner{}, "ffmpeg"), nil, store)
	queue.Start()

	done, ok := queue.GetJob("old-done")
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCompleted, done.Status)

	inflight, ok := queue.GetJob("old-inflight")
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, inflight.Status)
	assert.Contains(t, inflight.Error, "interrupted")
}
