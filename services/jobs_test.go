package services

import (
	"path/filepath"
	"testing"

	"coda/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewBatchJobs tests job record construction for a submission
func TestNewBatchJobs(t *testing.T) {
	jobs := NewBatchJobs([]string{"/videos/a.mp4", "/videos/b.mkv"}, "/music", true, "mp3")

	require.Len(t, jobs, 2)
	assert.Equal(t, jobs[0].BatchID, jobs[1].BatchID, "jobs of one submission share a batch")
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID)

	for _, job := range jobs {
		assert.Equal(t, types.JobStatusQueued, job.Status)
		assert.True(t, job.Normalize)
		assert.Equal(t, "mp3", job.Format)
		assert.Equal(t, filepath.FromSlash("/music"), job.OutputDir)
		assert.False(t, job.CreatedAt.IsZero())
	}
}

// TestNewBatchJobsDuplicateBasenames tests that inputs sharing a basename
// get distinct output paths instead of silently overwriting each other
func TestNewBatchJobsDuplicateBasenames(t *testing.T) {
	inputs := []string{
		filepath.FromSlash("/downloads/one/clip.mp4"),
		filepath.FromSlash("/downloads/two/clip.mp4"),
		filepath.FromSlash("/downloads/three/clip.mkv"),
	}

	jobs := NewBatchJobs(inputs, filepath.FromSlash("/music"), false, "mp3")
	require.Len(t, jobs, 3)

	assert.Equal(t, filepath.FromSlash("/music/clip.mp3"), jobs[0].OutputPath)
	assert.Equal(t, filepath.FromSlash("/music/clip (2).mp3"), jobs[1].OutputPath)
	assert.Equal(t, filepath.FromSlash("/music/clip (3).mp3"), jobs[2].OutputPath)
}
