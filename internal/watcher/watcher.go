// Package watcher watches a directory tree and reports debounced batches of
// file changes.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".github":      true,
	".gitlab":      true,
	".idea":        true,
	".vscode":      true,
	"var":          true,
	"cache":        true,
}

// DefaultDebounce is how long the watcher waits for more events before
// reporting a batch.
const DefaultDebounce = 200 * time.Millisecond

// Batch is one debounced set of changes, as absolute paths. A path appears
// in at most one list.
type Batch struct {
	Created []string
	Changed []string
	Deleted []string
}

// IsEmpty reports whether the batch holds no paths.
func (b Batch) IsEmpty() bool {
	return len(b.Created) == 0 && len(b.Changed) == 0 && len(b.Deleted) == 0
}

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	SkipDirs map[string]bool
	Logger   *zap.Logger
}

// Watcher reports changes below a root directory.
type Watcher struct {
	root     string
	debounce time.Duration
	skipDirs map[string]bool
	logger   *zap.Logger
	onBatch  func(Batch)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a watcher for root. onBatch is called from the watcher
// goroutine.
func New(root string, onBatch func(Batch), opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		root:     root,
		debounce: opts.Debounce,
		skipDirs: opts.SkipDirs,
		logger:   opts.Logger.Named("watcher"),
		onBatch:  onBatch,
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

type change int

const (
	changeCreated change = iota + 1
	changeChanged
	changeDeleted
)

// Start begins watching. Stop ends it.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if err := w.addDirectory(w.root); err != nil {
		cancel()
		_ = watcher.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]change)
	debounceTimer := time.NewTimer(time.Hour)
	debounceTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		var batch Batch
		for path, c := range pending {
			switch c {
			case changeCreated:
				batch.Created = append(batch.Created, path)
			case changeChanged:
				batch.Changed = append(batch.Changed, path)
			case changeDeleted:
				batch.Deleted = append(batch.Deleted, path)
			}
		}
		pending = make(map[string]change)
		sort.Strings(batch.Created)
		sort.Strings(batch.Changed)
		sort.Strings(batch.Deleted)

		w.logger.Debug("file changes",
			zap.Int("created", len(batch.Created)),
			zap.Int("changed", len(batch.Changed)),
			zap.Int("deleted", len(batch.Deleted)))
		w.onBatch(batch)
	}

	record := func(path string, c change) {
		switch prev, seen := pending[path]; {
		case !seen:
			pending[path] = c
		case prev == changeCreated && c == changeChanged:
			// Still a creation from the listener's point of view.
		case prev == changeCreated && c == changeDeleted:
			delete(pending, path)
		case prev == changeDeleted && c == changeCreated:
			pending[path] = changeChanged
		default:
			pending[path] = c
		}

		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.skipped(event.Name) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					record(event.Name, changeDeleted)
				}
				continue
			}

			if info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					if err := w.addDirectory(event.Name); err != nil {
						w.logger.Warn("error adding directory to watcher", zap.String("dir", event.Name), zap.Error(err))
					}
				}
				continue
			}

			switch {
			case event.Op&fsnotify.Create != 0:
				record(event.Name, changeCreated)
			case event.Op&fsnotify.Write != 0:
				record(event.Name, changeChanged)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				record(event.Name, changeDeleted)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-debounceTimer.C:
			flush()
		}
	}
}

// Stop ends watching and flushes pending changes.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.cancel = nil
}

func (w *Watcher) skipped(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if w.skipDirs[part] {
			return true
		}
	}
	return false
}

// addDirectory recursively adds dir and its subdirectories.
func (w *Watcher) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && w.skipDirs[info.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("error watching directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}
