package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"coda/ffmpeg"
	"coda/types"
)

// Converter runs conversion jobs against the external tool
type Converter interface {
	// Convert starts a worker goroutine for the job and returns its handle.
	// The handle's event channel carries Progress events and at most one
	// terminal Finished or Error, then closes. A cancelled job's channel
	// closes without a terminal event.
	Convert(job *types.ConversionJob) *Conversion
}

// NewConverter creates a converter that invokes the tool at ffmpegPath
func NewConverter(runner ffmpeg.Runner, ffmpegPath string) Converter {
	return &converter{
		runner:     runner,
		ffmpegPath: ffmpegPath,
	}
}

type converter struct {
	runner     ffmpeg.Runner
	ffmpegPath string
}

// Conversion is one live conversion, owned by its worker goroutine. The
// coordinator holds these handles directly; there is no side table mapping
// goroutines to workers.
type Conversion struct {
	Job *types.ConversionJob

	events chan types.ConversionEvent

	// Fixed by the probe before any subprocess starts or event is emitted;
	// the shared job record is never written from this goroutine.
	duration float64

	mu           sync.Mutex
	proc         ffmpeg.Process
	lastFraction float64
}

// Duration returns the probed media duration in seconds, or 0 when the
// probe output had none. Valid once an event has been received.
func (c *Conversion) Duration() float64 {
	return c.duration
}

// Events returns the job's event stream
func (c *Conversion) Events() <-chan types.ConversionEvent {
	return c.events
}

// Cancel flags the job and force-kills the active subprocess, if any
func (c *Conversion) Cancel() {
	c.Job.Cancel()
	c.mu.Lock()
	if c.proc != nil {
		c.proc.Kill()
	}
	c.mu.Unlock()
}

func (c *Conversion) setProc(p ffmpeg.Process) {
	c.mu.Lock()
	c.proc = p
	c.mu.Unlock()
}

// reportProgress emits a Progress event when the transcoded position
// advances. Fractions are clamped to [0,1] and never move backwards, even
// across the merge and encode invocations of one job.
func (c *Conversion) reportProgress(position float64) {
	total := c.duration
	if total <= 0 {
		return
	}

	fraction := position / total
	if fraction > 1 {
		fraction = 1
	}

	c.mu.Lock()
	if fraction < c.lastFraction {
		c.mu.Unlock()
		return
	}
	c.lastFraction = fraction
	c.mu.Unlock()

	c.emit(types.ConversionEvent{
		Kind:     types.EventProgress,
		JobID:    c.Job.ID,
		Fraction: fraction,
		Filename: filepath.Base(c.Job.InputPath),
	})
}

func (c *Conversion) emit(event types.ConversionEvent) {
	c.events <- event
}

// OutputPathFor derives the output file path: the input basename with its
// extension replaced by the target audio extension, inside the output
// directory.
func OutputPathFor(inputPath, outputDir, format string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outputDir, base+"."+format)
}

// Convert starts the worker goroutine for one job
func (cv *converter) Convert(job *types.ConversionJob) *Conversion {
	conv := &Conversion{
		Job:    job,
		events: make(chan types.ConversionEvent, 16),
	}
	go cv.run(conv)
	return conv
}

func (cv *converter) run(conv *Conversion) {
	defer close(conv.events)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Conversion worker panic for %s: %v", conv.Job.InputPath, r)
			conv.emit(errorEvent(conv.Job, fmt.Sprintf("unexpected worker failure: %v", r)))
		}
	}()

	job := conv.Job
	start := time.Now()

	if job.IsCancelled() {
		return
	}

	if _, err := os.Stat(job.InputPath); err != nil {
		conv.emit(errorEvent(job, fmt.Sprintf("input file does not exist: %s", job.InputPath)))
		return
	}

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		conv.emit(errorEvent(job, fmt.Sprintf("cannot create output directory: %v", err)))
		return
	}

	if job.OutputPath == "" {
		job.OutputPath = OutputPathFor(job.InputPath, job.OutputDir, job.Format)
	}

	// The probe fixes the job's total duration; it is never recomputed.
	// An info-only invocation exits non-zero, so the error is irrelevant.
	out, _ := cv.runner.Capture(cv.ffmpegPath, "-i", job.InputPath)
	conv.duration = ffmpeg.ParseDurationOutput(out)

	if job.IsCancelled() {
		return
	}

	base := strings.TrimSuffix(job.InputPath, filepath.Ext(job.InputPath))
	audioSegment := base + ".m4a"
	if info, err := os.Stat(audioSegment); err == nil && !info.IsDir() && audioSegment != job.InputPath {
		cv.convertMerged(conv, audioSegment, base+"_merged.ts", start)
		return
	}

	cv.convertDirect(conv, start)
}

// convertMerged stream-copies the video fragment and its audio sibling into
// an intermediate container next to the input, then encodes audio from it.
// The intermediate is removed on success and on cancellation; it is left in
// place when the encode itself fails.
func (cv *converter) convertMerged(conv *Conversion, audioSegment, mergedPath string, start time.Time) {
	job := conv.Job

	tail, err := cv.runTool(conv, ffmpeg.MergeArgs(job.InputPath, audioSegment, mergedPath))
	if job.IsCancelled() {
		os.Remove(mergedPath)
		return
	}
	if err != nil {
		os.Remove(mergedPath)
		conv.emit(errorEvent(job, toolError("segment merge failed", err, tail)))
		return
	}

	tail, err = cv.runTool(conv, ffmpeg.EncodeArgs(mergedPath, job.OutputPath, job.Normalize))
	if job.IsCancelled() {
		os.Remove(mergedPath)
		return
	}
	if err != nil {
		conv.emit(errorEvent(job, toolError("audio extraction failed", err, tail)))
		return
	}

	os.Remove(mergedPath)
	conv.emit(finishedEvent(job, time.Since(start).Seconds()))
}

func (cv *converter) convertDirect(conv *Conversion, start time.Time) {
	job := conv.Job

	tail, err := cv.runTool(conv, ffmpeg.EncodeArgs(job.InputPath, job.OutputPath, job.Normalize))
	if job.IsCancelled() {
		return
	}
	if err != nil {
		conv.emit(errorEvent(job, toolError("conversion failed", err, tail)))
		return
	}

	conv.emit(finishedEvent(job, time.Since(start).Seconds()))
}

// runTool runs one tool invocation to completion, feeding progress tokens to
// the job's event stream and collecting the trailing diagnostics for error
// reporting. The runner guarantees onLine has gone quiet before Wait
// returns, so reading the tail afterwards is safe.
func (cv *converter) runTool(conv *Conversion, args []string) (string, error) {
	var tail []string
	onLine := func(line string) {
		if position, ok := ffmpeg.ParseProgressTime(line); ok {
			conv.reportProgress(position)
			return
		}
		tail = append(tail, line)
		if len(tail) > 4 {
			tail = tail[1:]
		}
	}

	proc, err := cv.runner.Start(cv.ffmpegPath, args, onLine)
	if err != nil {
		return "", err
	}

	conv.setProc(proc)
	if conv.Job.IsCancelled() {
		proc.Kill()
	}
	err = proc.Wait()
	conv.setProc(nil)

	return strings.Join(tail, " | "), err
}

// toolError folds the tool's trailing diagnostics into a failure message
func toolError(prefix string, err error, tail string) string {
	if tail == "" {
		return fmt.Sprintf("%s: %v", prefix, err)
	}
	return fmt.Sprintf("%s: %v | %s", prefix, err, tail)
}

func errorEvent(job *types.ConversionJob, message string) types.ConversionEvent {
	return types.ConversionEvent{
		Kind:    types.EventError,
		JobID:   job.ID,
		Message: message,
	}
}

func finishedEvent(job *types.ConversionJob, elapsed float64) types.ConversionEvent {
	return types.ConversionEvent{
		Kind:       types.EventFinished,
		JobID:      job.ID,
		OutputPath: job.OutputPath,
		Elapsed:    elapsed,
	}
}
