package clientstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 50 * time.Millisecond

// Watch calls onChange whenever the file at path is written, replaced or
// removed, for example by another process sharing the same token file.
// Bursts of events are collapsed into one call. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, path string, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("[Watch] new watcher: %w", err)
	}
	defer fsw.Close()

	// The directory is watched because the file is replaced by rename.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("[Watch] add %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	fire := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, onChange)
	}
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("token file changed")
				fire()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Msg("[Watch] watcher error")
		}
	}
}
