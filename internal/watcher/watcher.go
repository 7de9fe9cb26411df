// Package watcher re-runs an analysis whenever the facts under a directory
// change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeusData/contractcheck/internal/discover"
)

// DefaultDebounce is how long the watcher waits after the last event before
// comparing snapshots.
const DefaultDebounce = 300 * time.Millisecond

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// RunFunc is the callback invoked after a debounced change.
type RunFunc func(ctx context.Context) error

// Options tune a Watcher. The zero value is usable.
type Options struct {
	Debounce time.Duration
	// Extra are files, relative to the root, tracked in addition to the
	// discovered facts files (configuration, .env).
	Extra []string
}

// Watcher watches a facts directory with fsnotify and calls runFn when the set
// of facts files (or a tracked extra file) actually changed.
type Watcher struct {
	root     string
	runFn    RunFunc
	debounce time.Duration
	extra    []string
	snapshot map[string]fileSnapshot
}

// New creates a Watcher for root.
func New(root string, runFn RunFunc, opts *Options) *Watcher {
	w := &Watcher{root: root, runFn: runFn, debounce: DefaultDebounce}
	if opts != nil {
		if opts.Debounce > 0 {
			w.debounce = opts.Debounce
		}
		w.extra = opts.Extra
	}
	return w
}

// Run blocks until ctx is cancelled. The first snapshot is a baseline and does
// not trigger runFn.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.root); err != nil {
		return fmt.Errorf("watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	snap, err := w.capture()
	if err != nil {
		return err
	}
	w.snapshot = snap
	slog.Debug("watcher.baseline", "root", w.root, "files", len(snap))

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(fsw, ev.Name); addErr != nil {
						slog.Warn("watcher.add", "path", ev.Name, "err", addErr)
					}
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.err", "err", err)
		case <-fire:
			w.check(ctx)
		}
	}
}

// check compares the current snapshot with the last one and runs the callback
// if anything changed. A failed run keeps the old snapshot so the next event
// retries.
func (w *Watcher) check(ctx context.Context) {
	snap, err := w.capture()
	if err != nil {
		slog.Warn("watcher.snapshot", "root", w.root, "err", err)
		return
	}
	if snapshotsEqual(w.snapshot, snap) {
		slog.Debug("watcher.unchanged", "root", w.root)
		return
	}

	slog.Info("watcher.changed", "root", w.root, "files", len(snap))
	if err := w.runFn(ctx); err != nil {
		slog.Warn("watcher.run", "root", w.root, "err", err)
		return
	}
	w.snapshot = snap
}

func (w *Watcher) capture() (map[string]fileSnapshot, error) {
	snap, err := captureSnapshot(w.root)
	if err != nil {
		return nil, err
	}
	for _, rel := range w.extra {
		info, statErr := os.Stat(filepath.Join(w.root, rel))
		if statErr != nil {
			continue
		}
		snap[filepath.ToSlash(rel)] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}

// addRecursive watches root and every directory below it that discovery would
// descend into.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && discover.IGNORE_PATTERNS[info.Name()] {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// captureSnapshot walks the facts tree using discover.Discover and captures
// mtime+size for each file.
func captureSnapshot(rootPath string) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(context.Background(), rootPath, nil)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}
