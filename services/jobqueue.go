package services

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"coda/types"
	"coda/websocket"
)

// QueueStats summarizes the queue for the status endpoint
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// JobQueue interface defines the methods for managing conversion jobs
type JobQueue interface {
	Start()
	AddBatch(inputs []string, outputDir string, normalize bool, format string) []*types.ConversionJob
	GetJob(id string) (*types.ConversionJob, bool)
	GetAllJobs() []*types.ConversionJob
	CancelJob(id string) bool
	CancelAll() int
	Stats() QueueStats
}

// jobQueue manages conversion jobs for the server mode
type jobQueue struct {
	jobs       map[string]*types.ConversionJob
	queue      chan *types.ConversionJob
	active     map[string]*Conversion
	batches    map[string]*batchProgress
	mu         sync.RWMutex
	maxWorkers int
	converter  Converter
	hub        websocket.Hub
	store      JobStore
}

// batchProgress tracks the aggregate percentage of one submitted batch
type batchProgress struct {
	fractions map[string]float64
	total     int
	smoother  progressSmoother
}

// NewJobQueue creates a new job queue
func NewJobQueue(maxWorkers int, converter Converter, hub websocket.Hub, store JobStore) JobQueue {
	return &jobQueue{
		jobs:       make(map[string]*types.ConversionJob),
		queue:      make(chan *types.ConversionJob, 100), // Buffer for 100 jobs
		active:     make(map[string]*Conversion),
		batches:    make(map[string]*batchProgress),
		maxWorkers: maxWorkers,
		converter:  converter,
		hub:        hub,
		store:      store,
	}
}

// AddBatch creates one job per input and enqueues them all
func (jq *jobQueue) AddBatch(inputs []string, outputDir string, normalize bool, format string) []*types.ConversionJob {
	jobs := NewBatchJobs(inputs, outputDir, normalize, format)

	jq.mu.Lock()
	if len(jobs) > 0 {
		jq.batches[jobs[0].BatchID] = &batchProgress{
			fractions: make(map[string]float64, len(jobs)),
			total:     len(jobs),
		}
	}
	for _, job := range jobs {
		jq.jobs[job.ID] = job
	}
	jq.mu.Unlock()

	// Snapshot before enqueueing; a worker may start mutating a job while
	// the caller is still serializing the response.
	snaps := make([]*types.ConversionJob, len(jobs))
	for i, job := range jobs {
		snaps[i] = job.Snapshot()
	}

	for _, job := range jobs {
		jq.saveRecord(job)
		jq.queue <- job
	}
	return snaps
}

// GetJob retrieves a snapshot of a job by ID, falling back to persisted
// records from earlier runs
func (jq *jobQueue) GetJob(id string) (*types.ConversionJob, bool) {
	jq.mu.RLock()
	job, exists := jq.jobs[id]
	if exists {
		snap := job.Snapshot()
		jq.mu.RUnlock()
		return snap, true
	}
	jq.mu.RUnlock()
	return jq.store.Get(id)
}

// GetAllJobs returns snapshots of every job known to this process
func (jq *jobQueue) GetAllJobs() []*types.ConversionJob {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*types.ConversionJob, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobs = append(jobs, job.Snapshot())
	}
	return jobs
}

// CancelJob cancels a queued or processing job
func (jq *jobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	job, exists := jq.jobs[id]
	if !exists {
		jq.mu.Unlock()
		return false
	}

	switch job.Status {
	case types.JobStatusQueued:
		// The worker that eventually pops it sees the flag and skips it;
		// the record is concluded here so the API reflects it immediately.
		job.Cancel()
		jq.concludeLocked(job, types.JobStatusCancelled, "")
		jq.mu.Unlock()
		jq.saveRecord(job)
		jq.broadcast(job, "status", "cancelled")
		return true

	case types.JobStatusProcessing:
		conv := jq.active[id]
		jq.mu.Unlock()
		if conv != nil {
			conv.Cancel()
		} else {
			job.Cancel()
		}
		return true
	}

	jq.mu.Unlock()
	return false
}

// CancelAll cancels every queued and processing job, returning how many
// were affected
func (jq *jobQueue) CancelAll() int {
	jq.mu.RLock()
	var ids []string
	for id, job := range jq.jobs {
		if job.Status == types.JobStatusQueued || job.Status == types.JobStatusProcessing {
			ids = append(ids, id)
		}
	}
	jq.mu.RUnlock()

	cancelled := 0
	for _, id := range ids {
		if jq.CancelJob(id) {
			cancelled++
		}
	}
	return cancelled
}

// Stats counts jobs by status plus the queue backlog
func (jq *jobQueue) Stats() QueueStats {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	var stats QueueStats
	for _, job := range jq.jobs {
		switch job.Status {
		case types.JobStatusQueued:
			stats.Queued++
		case types.JobStatusProcessing:
			stats.Processing++
		case types.JobStatusCompleted:
			stats.Completed++
		case types.JobStatusFailed:
			stats.Failed++
		case types.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Start loads persisted records and begins processing jobs
func (jq *jobQueue) Start() {
	jq.restoreRecords()
	for i := 0; i < jq.maxWorkers; i++ {
		go jq.worker()
	}
}

// restoreRecords republishes job records from the store. Records left in a
// non-terminal state belong to a previous process whose subprocesses are
// long gone, so they are concluded as failed.
func (jq *jobQueue) restoreRecords() {
	for _, record := range jq.store.All() {
		jq.mu.Lock()
		if _, exists := jq.jobs[record.ID]; exists {
			jq.mu.Unlock()
			continue
		}
		if record.Status == types.JobStatusQueued || record.Status == types.JobStatusProcessing {
			jq.concludeLocked(record, types.JobStatusFailed, "interrupted by server restart")
		}
		jq.jobs[record.ID] = record
		jq.mu.Unlock()
		jq.saveRecord(record)
	}
}

// worker processes jobs from the queue, one conversion at a time
func (jq *jobQueue) worker() {
	for job := range jq.queue {
		if job.IsCancelled() {
			continue
		}

		jq.startJob(job)
		conv := jq.converter.Convert(job)

		jq.mu.Lock()
		jq.active[job.ID] = conv
		jq.mu.Unlock()

		jq.consume(job, conv)

		jq.mu.Lock()
		delete(jq.active, job.ID)
		jq.mu.Unlock()
	}
}

func (jq *jobQueue) startJob(job *types.ConversionJob) {
	jq.mu.Lock()
	now := time.Now()
	job.Status = types.JobStatusProcessing
	job.StartedAt = &now
	jq.mu.Unlock()

	jq.saveRecord(job)
	jq.broadcast(job, "status", fmt.Sprintf("Started converting %s", filepath.Base(job.InputPath)))
}

// consume drains one conversion's event channel, updating the job record
// and fanning progress out to WebSocket clients
func (jq *jobQueue) consume(job *types.ConversionJob, conv *Conversion) {
	sawTerminal := false

	for event := range conv.Events() {
		switch event.Kind {
		case types.EventProgress:
			jq.mu.Lock()
			job.Duration = conv.Duration()
			job.Progress = event.Fraction * 100
			jq.mu.Unlock()
			jq.broadcast(job, "progress", "")

		case types.EventFinished:
			sawTerminal = true
			jq.mu.Lock()
			jq.concludeLocked(job, types.JobStatusCompleted, "")
			job.Duration = conv.Duration()
			job.Progress = 100
			job.Elapsed = event.Elapsed
			jq.mu.Unlock()
			jq.saveRecord(job)
			jq.broadcast(job, "complete", fmt.Sprintf("%s converted in %.1fs", filepath.Base(job.InputPath), event.Elapsed))
			log.Printf("Job %s completed: %s", job.ID, job.OutputPath)

		case types.EventError:
			sawTerminal = true
			jq.mu.Lock()
			jq.concludeLocked(job, types.JobStatusFailed, event.Message)
			jq.mu.Unlock()
			jq.saveRecord(job)
			jq.broadcast(job, "error", event.Message)
			log.Printf("Job %s failed: %s", job.ID, event.Message)
		}
	}

	if !sawTerminal && job.IsCancelled() {
		jq.mu.Lock()
		jq.concludeLocked(job, types.JobStatusCancelled, "")
		jq.mu.Unlock()
		jq.saveRecord(job)
		jq.broadcast(job, "status", "cancelled")
		log.Printf("Job %s cancelled", job.ID)
	}
}

// concludeLocked moves a job to a terminal status; callers hold jq.mu
// except during restore, where no worker can race
func (jq *jobQueue) concludeLocked(job *types.ConversionJob, status types.JobStatus, errorMsg string) {
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	if errorMsg != "" {
		job.Error = errorMsg
	}
}

// broadcast fans a job update out via the WebSocket hub, attaching the
// smoothed overall percentage of the job's batch
func (jq *jobQueue) broadcast(job *types.ConversionJob, msgType, message string) {
	if jq.hub == nil {
		return
	}

	jq.mu.Lock()
	progress := job.Progress
	status := string(job.Status)
	overall := jq.updateBatchLocked(job)
	jq.mu.Unlock()

	jq.hub.BroadcastProgress(job.ID, msgType, status, filepath.Base(job.InputPath), message, progress, overall)
}

// updateBatchLocked refreshes the batch aggregate for one job's latest
// progress; callers hold jq.mu
func (jq *jobQueue) updateBatchLocked(job *types.ConversionJob) float64 {
	bp, ok := jq.batches[job.BatchID]
	if !ok {
		return job.Progress
	}

	terminal := false
	switch job.Status {
	case types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCancelled:
		bp.fractions[job.ID] = 1
		terminal = true
	default:
		bp.fractions[job.ID] = job.Progress / 100
	}

	return bp.smoother.Update(rawOverall(bp.fractions, bp.total), terminal)
}

// saveRecord persists the job, logging rather than failing on error.
// Persistence is best-effort bookkeeping, never in the conversion path.
func (jq *jobQueue) saveRecord(job *types.ConversionJob) {
	if jq.store == nil {
		return
	}
	jq.mu.RLock()
	snap := job.Snapshot()
	jq.mu.RUnlock()
	if err := jq.store.Save(snap); err != nil {
		log.Printf("Warning: could not persist job %s: %v", job.ID, err)
	}
}
