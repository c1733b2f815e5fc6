// Package watcher monitors a collection manifest for external edits and
// delivers debounced change notifications. It prefers filesystem events
// via fsnotify and falls back to stat polling when event watching is
// unavailable (network mounts, exhausted inotify instances).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/types"
)

const pollInterval = 5 * time.Second

// Watcher monitors one collection.toml using filesystem events or polling.
type Watcher struct {
	manifestPath string
	parentDir    string
	watcher      *fsnotify.Watcher
	debouncer    *Debouncer
	pollingMode  bool
	lastModTime  time.Time
	lastExists   bool
	lastSize     int64
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a watcher for the given manifest path. onChanged is called
// after each debounced burst of changes. When fsnotify cannot be set up the
// watcher degrades to polling mode unless SM_WATCHER_FALLBACK is set to
// "false" or "0", in which case the setup error is returned.
func New(manifestPath string, debounce time.Duration, onChanged func()) (*Watcher, error) {
	w := &Watcher{
		manifestPath: manifestPath,
		parentDir:    filepath.Dir(manifestPath),
		debouncer:    NewDebouncer(debounce, onChanged),
	}

	// Seed the polling state so a fallback does not fire a spurious change.
	if stat, err := os.Stat(manifestPath); err == nil {
		w.lastModTime = stat.ModTime()
		w.lastExists = true
		w.lastSize = stat.Size()
	}

	fallbackEnv := os.Getenv("SM_WATCHER_FALLBACK")
	fallbackDisabled := fallbackEnv == "false" || fallbackEnv == "0"

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		if fallbackDisabled {
			return nil, types.WrapError(types.KindTransientIO, "watcher.New", err)
		}
		debug.Warnf("fsnotify unavailable (%v), polling %s every %v", err, manifestPath, pollInterval)
		w.pollingMode = true
		return w, nil
	}
	w.watcher = fsw

	// Watching the parent directory catches create and rename, which a
	// file-level watch misses once the inode goes away.
	if err := fsw.Add(w.parentDir); err != nil {
		_ = fsw.Close()
		if fallbackDisabled {
			return nil, types.WrapError(types.KindTransientIO, "watcher.New", err)
		}
		debug.Warnf("cannot watch %s (%v), polling every %v", w.parentDir, err, pollInterval)
		w.pollingMode = true
		w.watcher = nil
		return w, nil
	}

	if err := fsw.Add(manifestPath); err != nil && !os.IsNotExist(err) {
		debug.Warnf("cannot watch %s directly: %v", manifestPath, err)
	}

	return w, nil
}

// Polling reports whether the watcher degraded to stat polling.
func (w *Watcher) Polling() bool { return w.pollingMode }

// Start begins monitoring in a background goroutine until the context is
// canceled or Close is called. Call it at most once per watcher.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if w.pollingMode {
		w.startPolling(ctx)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				debug.Warnf("watcher error for %s: %v", w.manifestPath, err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Name != w.manifestPath {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		debug.Logf("manifest created: %s", event.Name)
		_ = w.watcher.Add(w.manifestPath)
		w.debouncer.Trigger()
	case event.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		debug.Logf("manifest change: %s", event.Name)
		w.debouncer.Trigger()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Editors and git checkouts replace the file rather than
		// writing in place, so chase the new inode.
		debug.Logf("manifest removed or renamed, re-establishing watch")
		_ = w.watcher.Remove(w.manifestPath)
		w.reEstablishWatch(ctx)
	}
}

// reEstablishWatch re-adds the manifest watch with short backoff, waiting
// out the window between an atomic replace's unlink and rename.
func (w *Watcher) reEstablishWatch(ctx context.Context) {
	delays := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

	for _, delay := range delays {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if err := w.watcher.Add(w.manifestPath); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				debug.Warnf("re-watch %s: %v", w.manifestPath, err)
				return
			}
			w.debouncer.Trigger()
			return
		}
	}
	debug.Warnf("manifest %s still missing, relying on directory watch", w.manifestPath)
}

func (w *Watcher) startPolling(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if w.pollOnce() {
					w.debouncer.Trigger()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// pollOnce compares the manifest's current stat against the last observed
// state and reports whether anything changed.
func (w *Watcher) pollOnce() bool {
	stat, err := os.Stat(w.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			if w.lastExists {
				w.lastExists = false
				w.lastModTime = time.Time{}
				w.lastSize = 0
				return true
			}
			return false
		}
		debug.Warnf("polling %s: %v", w.manifestPath, err)
		return false
	}

	if !w.lastExists {
		w.lastExists = true
		w.lastModTime = stat.ModTime()
		w.lastSize = stat.Size()
		return true
	}
	if !stat.ModTime().Equal(w.lastModTime) || stat.Size() != w.lastSize {
		w.lastModTime = stat.ModTime()
		w.lastSize = stat.Size()
		return true
	}
	return false
}

// Close stops monitoring and releases the fsnotify handle. Pending
// debounced callbacks are dropped.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.debouncer.Cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
