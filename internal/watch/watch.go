// Package watch tracks which project files changed between phase
// boundaries, so re-indexing touches only dirty paths instead of walking
// the whole tree every phase.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tracker watches a directory tree and accumulates dirty paths.
type Tracker struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	dirty   map[string]struct{}
	removed map[string]struct{}

	done chan struct{}
}

// skipDirs are never watched; they churn constantly and are excluded from
// indexing anyway.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".sprintd":     {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"__pycache__":  {},
}

// NewTracker starts watching root recursively.
func NewTracker(ctx context.Context, root string, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		root:    root,
		watcher: watcher,
		logger:  logger,
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
		done:    make(chan struct{}),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go t.loop(ctx)
	return t, nil
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handle(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (t *Tracker) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(t.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if _, skip := skipDirs[part]; skip {
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(t.dirty, rel)
		t.removed[rel] = struct{}{}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		delete(t.removed, rel)
		t.dirty[rel] = struct{}{}
		// New directories need their own watch.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = t.watcher.Add(event.Name)
		}
	}
}

// Drain returns and clears the accumulated dirty and removed path sets.
// Called once per phase boundary by the indexing pass.
func (t *Tracker) Drain() (dirty, removed []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for p := range t.dirty {
		dirty = append(dirty, p)
	}
	for p := range t.removed {
		removed = append(removed, p)
	}
	t.dirty = make(map[string]struct{})
	t.removed = make(map[string]struct{})
	return dirty, removed
}

// Close stops watching. Safe after the context is already cancelled.
func (t *Tracker) Close() error {
	err := t.watcher.Close()
	<-t.done
	return err
}
