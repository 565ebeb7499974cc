package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWatcherSubmitsNewFiles tests that a convertible file appearing in the
// watched directory reaches the callback
func TestWatcherSubmitsNewFiles(t *testing.T) {
	dir := t.TempDir()

	detected := make(chan string, 8)
	watcher := NewWatcher(func(path string) {
		detected <- path
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watcher.Watch(ctx, dir)
	}()

	// Give the watch registration a moment before creating files
	time.Sleep(100 * time.Millisecond)

	mediaPath := filepath.Join(dir, "episode.mp4")
	require.NoError(t, os.WriteFile(mediaPath, []byte("fake media"), 0644))

	select {
	case path := <-detected:
		assert.Equal(t, mediaPath, path)
	case <-time.After(3 * time.Second):
		t.Fatal("new media file was not detected")
	}

	cancel()
	select {
	case err := <-watchDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

// TestWatcherIgnoresOtherFiles tests that non-media files never reach the
// callback
func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	detected := make(chan string, 8)
	watcher := NewWatcher(func(path string) {
		detected <- path
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Watch(ctx, dir)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644))
	mediaPath := filepath.Join(dir, "clip.mkv")
	require.NoError(t, os.WriteFile(mediaPath, []byte("fake media"), 0644))

	// The media file arrives and the text file never does
	select {
	case path := <-detected:
		assert.Equal(t, mediaPath, path)
	case <-time.After(3 * time.Second):
		t.Fatal("media file was not detected")
	}
	assert.Empty(t, detected)
}
