package control

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"thermod/pkg/logger"
)

// watchTimetableFile watches path for external edits and pushes onto
// reload whenever one lands, so an operator hand-editing the timetable
// on disk gets the same reload path as SIGHUP. Debounces bursts of
// writes (editors commonly save via a temp-file-then-rename sequence
// that fires more than one event) behind a short settle delay.
func watchTimetableFile(ctx context.Context, path string, reload chan<- struct{}, log *logger.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("timetable file watcher unavailable: %v", err)
		return
	}
	defer watcher.Close()

	// Watch the parent directory, not the file: a rename onto path
	// replaces the watched inode and would silently end a file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Error("watching timetable file %s: %v", path, err)
		return
	}

	const settle = 100 * time.Millisecond
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(settle, func() {
				select {
				case reload <- struct{}{}:
				case <-ctx.Done():
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error("timetable file watcher error: %v", err)
		}
	}
}
