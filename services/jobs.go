package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"coda/types"

	"github.com/google/uuid"
)

// NewBatchJobs creates the job records for one batch submission. Every job
// gets its output path assigned up front so that two inputs sharing a
// basename (same name, different directories) never silently overwrite each
// other: the second and later collisions get a " (2)", " (3)"... suffix
// before the extension.
func NewBatchJobs(inputs []string, outputDir string, normalize bool, format string) []*types.ConversionJob {
	batchID := uuid.New().String()
	used := make(map[string]bool)

	jobs := make([]*types.ConversionJob, 0, len(inputs))
	for _, input := range inputs {
		job := &types.ConversionJob{
			ID:         uuid.New().String(),
			BatchID:    batchID,
			InputPath:  input,
			OutputDir:  outputDir,
			OutputPath: dedupeOutputPath(OutputPathFor(input, outputDir, format), used),
			Format:     format,
			Normalize:  normalize,
			Status:     types.JobStatusQueued,
			CreatedAt:  time.Now(),
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// dedupeOutputPath returns path, or the first numbered variant of it not yet
// claimed within the batch, and records the claim
func dedupeOutputPath(path string, used map[string]bool) string {
	candidate := path
	for n := 2; used[candidate]; n++ {
		ext := filepath.Ext(path)
		candidate = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(path, ext), n, ext)
	}
	used[candidate] = true
	return candidate
}
