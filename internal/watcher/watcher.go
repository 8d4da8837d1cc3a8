// Package watcher observes a book directory and signals when its
// markdown content changes, so the serving process can reindex without
// being restarted.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/bookwise/internal/logger"
)

// DefaultDebounce is how long the watcher waits after the last change
// before signalling. Editors and sync tools write files in bursts.
const DefaultDebounce = 2 * time.Second

// Watcher emits a signal when markdown files under a directory change.
type Watcher struct {
	dir      string
	debounce time.Duration
}

// New creates a watcher for dir.
func New(dir string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce}
}

// Watch starts watching and returns a channel that receives one value per
// settled burst of changes. The channel closes when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	if err := addRecursive(fsw, w.dir); err != nil {
		fsw.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go w.run(ctx, fsw, changes)
	return changes, nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, changes chan<- struct{}) {
	defer fsw.Close()
	defer close(changes)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			// New subdirectories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if err := addRecursive(fsw, event.Name); err != nil {
					logger.Debug("watcher: %v", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}
}

// relevant reports whether an event should trigger a reindex.
func relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	if isMarkdown(event.Name) {
		return true
	}
	// Directory events have no extension; creation of one may bring
	// markdown files with it.
	return event.Op.Has(fsnotify.Create) && filepath.Ext(event.Name) == ""
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// addRecursive watches path and every directory below it. Non-directories
// are ignored.
func addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may have vanished between event and walk.
			return nil //nolint:nilerr // transient races are expected here
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watcher: watching %s: %w", p, err)
		}
		return nil
	})
}
