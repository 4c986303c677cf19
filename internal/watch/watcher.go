// Package watch keeps the trace kernel current while sources change on
// disk. Filesystem events are debounced per file, then settled files are
// rescanned incrementally and their facts replaced in the kernel.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reqtrace/internal/logging"
	"reqtrace/internal/scan"
	"reqtrace/internal/trace"
)

// UpdateFunc receives the refreshed matrix after each rescan batch.
type UpdateFunc func(*trace.Matrix)

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Rescans       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher monitors a workspace and feeds incremental rescans into the
// kernel. The kernel is only touched from the watcher's event loop.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	scanner     *scan.Scanner
	kernel      *trace.Kernel
	root        string
	onUpdate    UpdateFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// NewWatcher creates a watcher over the workspace root.
func NewWatcher(root string, scanner *scan.Scanner, kernel *trace.Kernel, onUpdate UpdateFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		scanner:     scanner,
		kernel:      kernel,
		root:        root,
		onUpdate:    onUpdate,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start registers every workspace directory and begins the event loop.
// Non-blocking; events are processed in a goroutine until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// fsnotify does not recurse, so every directory is added explicitly.
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && scan.IsSkippedDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WatchWarn("failed to watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Watch("watching %s (%d dirs)", w.root, len(w.watcher.WatchList()))
	go w.run(ctx)
	return nil
}

// Stop stops the event loop and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns a snapshot of watcher activity.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories need explicit registration.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !scan.IsSkippedDir(info.Name()) {
				if err := w.watcher.Add(event.Name); err != nil {
					logging.WatchWarn("failed to watch new dir %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	var deleted bool
	switch {
	case event.Op&fsnotify.Create != 0:
	case event.Op&fsnotify.Write != 0:
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		deleted = true
	default:
		return // Ignore chmod
	}

	// Only files the registry can parse matter to the kernel.
	if !w.scanner.Parses(event.Name) {
		return
	}

	logging.WatchDebug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	switch {
	case deleted:
		w.stats.FilesDeleted++
	case event.Op&fsnotify.Create != 0:
		w.stats.FilesCreated++
	default:
		w.stats.FilesModified++
	}
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled rescans files whose events have settled past the
// debounce window, then publishes a refreshed matrix.
func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var toProcess []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	if len(toProcess) == 0 {
		return
	}

	results, err := w.scanner.ScanFiles(ctx, toProcess)
	if err != nil {
		logging.Get(logging.CategoryWatch).Error("incremental rescan failed: %v", err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	for rel, res := range results {
		var err error
		if res == nil {
			err = w.kernel.RemoveFile(rel)
		} else {
			err = w.kernel.UpdateFile(rel, res.Tags)
		}
		if err != nil {
			logging.Get(logging.CategoryWatch).Error("kernel update for %s failed: %v", rel, err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			return
		}
	}

	w.mu.Lock()
	w.stats.Rescans++
	w.mu.Unlock()

	if w.onUpdate != nil {
		matrix, err := w.kernel.Matrix()
		if err != nil {
			logging.Get(logging.CategoryWatch).Error("matrix rebuild failed: %v", err)
			return
		}
		w.onUpdate(matrix)
	}
}
