package services

import (
	"context"
	"log"

	"coda/config"

	"github.com/fsnotify/fsnotify"
)

// Watcher submits convertible files that appear in a directory. It only
// reacts to newly created files; whatever is already in the directory at
// start is the caller's business.
type Watcher struct {
	onFile func(path string)
}

// NewWatcher creates a watcher that calls onFile for each new convertible
// file. onFile is invoked from the watch loop, one call at a time.
func NewWatcher(onFile func(path string)) *Watcher {
	return &Watcher{onFile: onFile}
}

// Watch blocks watching dir until ctx is cancelled
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s for new media files", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !config.IsConvertible(event.Name) {
				continue
			}
			log.Printf("New file detected: %s", event.Name)
			w.onFile(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watch error: %v", err)
		}
	}
}
