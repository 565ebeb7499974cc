package types

import (
	"sync/atomic"
	"time"
)

// JobStatus represents the current status of a conversion job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ConversionJob represents one input-file-to-output-audio conversion task
type ConversionJob struct {
	ID          string     `json:"id"`
	BatchID     string     `json:"batchId,omitempty"`
	InputPath   string     `json:"inputPath"`
	OutputDir   string     `json:"outputDir"`
	OutputPath  string     `json:"outputPath,omitempty"`
	Format      string     `json:"format"`
	Normalize   bool       `json:"normalize"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`           // 0-100 percentage
	Duration    float64    `json:"duration,omitempty"` // total media seconds, fixed once probed
	Elapsed     float64    `json:"elapsed,omitempty"`  // wall-clock conversion seconds
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	cancelled atomic.Bool
}

// Cancel marks the job as cancelled. The worker checks this flag between
// subprocess invocations; killing a live subprocess is the worker's duty.
func (j *ConversionJob) Cancel() {
	j.cancelled.Store(true)
}

// IsCancelled reports whether the job has been cancelled
func (j *ConversionJob) IsCancelled() bool {
	return j.cancelled.Load()
}

// Snapshot copies the job's record fields. Workers keep mutating the live
// job under the queue's lock, so anything that serializes or inspects a job
// outside that lock reads a copy instead.
func (j *ConversionJob) Snapshot() *ConversionJob {
	snap := &ConversionJob{
		ID:          j.ID,
		BatchID:     j.BatchID,
		InputPath:   j.InputPath,
		OutputDir:   j.OutputDir,
		OutputPath:  j.OutputPath,
		Format:      j.Format,
		Normalize:   j.Normalize,
		Status:      j.Status,
		Progress:    j.Progress,
		Duration:    j.Duration,
		Elapsed:     j.Elapsed,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	snap.cancelled.Store(j.cancelled.Load())
	return snap
}
