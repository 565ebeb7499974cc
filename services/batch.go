package services

import (
	"sync"
	"time"

	"coda/types"
)

// BatchUpdate is delivered to the batch subscriber for every job event.
// Overall is the smoothed 0-100 percentage across the whole batch; Done
// counts jobs that have concluded (completed, failed or cancelled).
type BatchUpdate struct {
	Job     *types.ConversionJob
	Event   types.ConversionEvent
	Done    int
	Total   int
	Overall float64
}

// BatchConverter coordinates one batch of conversion jobs. It spawns one
// worker per job, consumes every job channel from a single event loop, and
// aggregates per-file progress into a smoothed overall percentage. The
// subscriber callback is invoked from the event loop only, so subscribers
// need no locking of their own.
type BatchConverter struct {
	converter Converter

	mu          sync.Mutex
	conversions map[string]*Conversion
}

// NewBatchConverter creates a coordinator running jobs through converter
func NewBatchConverter(converter Converter) *BatchConverter {
	return &BatchConverter{
		converter:   converter,
		conversions: make(map[string]*Conversion),
	}
}

// batchEvent pairs a job event with its conversion for the fan-in loop.
// closed marks the end of a job's stream.
type batchEvent struct {
	conv   *Conversion
	event  types.ConversionEvent
	closed bool
}

// Run converts every job in the batch and blocks until all of them have
// concluded. onUpdate receives every raw job event unthrottled; the Overall
// field it carries advances at most once per 100ms except on terminal
// events, which always flush. Cancel and CancelAll may be called from other
// goroutines while Run is in flight.
func (b *BatchConverter) Run(jobs []*types.ConversionJob, onUpdate func(BatchUpdate)) {
	if len(jobs) == 0 {
		return
	}

	events := make(chan batchEvent)
	var forwarders sync.WaitGroup

	b.mu.Lock()
	for _, job := range jobs {
		now := time.Now()
		job.Status = types.JobStatusProcessing
		job.StartedAt = &now

		conv := b.converter.Convert(job)
		b.conversions[job.ID] = conv

		forwarders.Add(1)
		go func(conv *Conversion) {
			defer forwarders.Done()
			for event := range conv.Events() {
				events <- batchEvent{conv: conv, event: event}
			}
			events <- batchEvent{conv: conv, closed: true}
		}(conv)
	}
	b.mu.Unlock()

	go func() {
		forwarders.Wait()
		close(events)
	}()

	b.consume(events, jobs, onUpdate)
}

// consume is the single point of aggregate-state mutation for the batch
func (b *BatchConverter) consume(events <-chan batchEvent, jobs []*types.ConversionJob, onUpdate func(BatchUpdate)) {
	total := len(jobs)
	fractions := make(map[string]float64, total)
	done := 0
	var smoother progressSmoother

	for be := range events {
		job := be.conv.Job

		if be.closed {
			b.mu.Lock()
			delete(b.conversions, job.ID)
			b.mu.Unlock()

			// A channel that closes without a terminal event belongs to
			// a cancelled job; synthesize the event so subscribers see
			// every job conclude.
			if job.Status == types.JobStatusProcessing && job.IsCancelled() {
				b.concludeJob(job, types.JobStatusCancelled)
				fractions[job.ID] = 1
				done++
				onUpdate(BatchUpdate{
					Job:     job,
					Event:   types.ConversionEvent{Kind: types.EventCancelled, JobID: job.ID},
					Done:    done,
					Total:   total,
					Overall: smoother.Update(rawOverall(fractions, total), true),
				})
			}
			continue
		}

		force := false
		switch be.event.Kind {
		case types.EventProgress:
			fractions[job.ID] = be.event.Fraction
			job.Progress = be.event.Fraction * 100

		case types.EventFinished:
			b.concludeJob(job, types.JobStatusCompleted)
			job.Progress = 100
			job.Elapsed = be.event.Elapsed
			fractions[job.ID] = 1
			done++
			force = true

		case types.EventError:
			b.concludeJob(job, types.JobStatusFailed)
			job.Error = be.event.Message
			fractions[job.ID] = 1
			done++
			force = true
		}

		onUpdate(BatchUpdate{
			Job:     job,
			Event:   be.event,
			Done:    done,
			Total:   total,
			Overall: smoother.Update(rawOverall(fractions, total), force),
		})
	}
}

func (b *BatchConverter) concludeJob(job *types.ConversionJob, status types.JobStatus) {
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
}

// rawOverall is the unsmoothed batch percentage: concluded jobs count as
// whole files, the rest contribute their current fraction
func rawOverall(fractions map[string]float64, total int) float64 {
	var sum float64
	for _, f := range fractions {
		sum += f
	}
	return sum / float64(total) * 100
}

// Cancel cancels one job's conversion; false when the job is not active
func (b *BatchConverter) Cancel(jobID string) bool {
	b.mu.Lock()
	conv, ok := b.conversions[jobID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	conv.Cancel()
	return true
}

// CancelAll force-terminates every active conversion in the batch
func (b *BatchConverter) CancelAll() {
	b.mu.Lock()
	conversions := make([]*Conversion, 0, len(b.conversions))
	for _, conv := range b.conversions {
		conversions = append(conversions, conv)
	}
	b.mu.Unlock()

	for _, conv := range conversions {
		conv.Cancel()
	}
}
