package mainthread

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/watcher"
)

// FileSystemEvents runs one watcher over the workspace and routes its
// batches to the watchers the extension side created.
type FileSystemEvents struct {
	s      *Session
	logger *zap.Logger
	ext    protocol.ExtFileSystemEventServiceProxy
	root   string
	opts   watcher.Options

	watcher *watcher.Watcher

	mu      sync.RWMutex
	watches map[int]protocol.WatchOptions
}

func newFileSystemEvents(s *Session, root string, opts watcher.Options) *FileSystemEvents {
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	return &FileSystemEvents{
		s:       s,
		logger:  s.logger.Named("fileevents"),
		ext:     protocol.NewExtFileSystemEventServiceProxy(s.proto),
		root:    root,
		opts:    opts,
		watches: make(map[int]protocol.WatchOptions),
	}
}

func (f *FileSystemEvents) methods() rpc.Methods {
	return rpc.Methods{
		"$watch":   rpc.Action2(f.watch),
		"$unwatch": rpc.Action1(f.unwatch),
	}
}

func (f *FileSystemEvents) start() error {
	f.watcher = watcher.New(f.root, f.dispatch, f.opts)
	if err := f.watcher.Start(); err != nil {
		f.watcher = nil
		return err
	}
	f.logger.Info("watching workspace", zap.String("root", f.root))
	return nil
}

func (f *FileSystemEvents) stop() {
	if f.watcher != nil {
		f.watcher.Stop()
		f.watcher = nil
	}
}

func (f *FileSystemEvents) watch(_ context.Context, handle int, opts protocol.WatchOptions) error {
	if !doublestar.ValidatePattern(opts.Pattern) {
		return fmt.Errorf("%w: invalid glob pattern %q", rpc.ErrInvalidArguments, opts.Pattern)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.watches[handle]; dup {
		return fmt.Errorf("%w: watcher %d already exists", rpc.ErrInvalidArguments, handle)
	}
	f.watches[handle] = opts
	return nil
}

func (f *FileSystemEvents) unwatch(_ context.Context, handle int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watches[handle]; !ok {
		return fmt.Errorf("%w: watcher %d", rpc.ErrUnknownHandle, handle)
	}
	delete(f.watches, handle)
	return nil
}

// Watching returns the number of extension side watchers.
func (f *FileSystemEvents) Watching() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.watches)
}

// dispatch sends each watcher the part of the batch it selected, and
// reloads the configuration when a settings file changed.
func (f *FileSystemEvents) dispatch(batch watcher.Batch) {
	for _, path := range append(append([]string(nil), batch.Changed...), batch.Created...) {
		if f.s.Configuration.watchesSettings(path) {
			if err := f.s.Configuration.Reload(context.Background()); err != nil {
				f.logger.Warn("failed to reload settings", zap.Error(err))
			}
			break
		}
	}

	if !f.s.isSynced() {
		return
	}

	f.mu.RLock()
	watches := make(map[int]protocol.WatchOptions, len(f.watches))
	for h, o := range f.watches {
		watches[h] = o
	}
	f.mu.RUnlock()

	for handle, opts := range watches {
		events := f.filter(opts, batch)
		if events.IsEmpty() {
			continue
		}
		f.s.notify("$onFileEvent", f.ext.OnFileEvent(context.Background(), handle, events))
	}
}

func (f *FileSystemEvents) filter(opts protocol.WatchOptions, batch watcher.Batch) protocol.FileSystemEvents {
	var events protocol.FileSystemEvents
	if !opts.IgnoreCreate {
		events.Created = f.matching(opts.Pattern, batch.Created)
	}
	if !opts.IgnoreChange {
		events.Changed = f.matching(opts.Pattern, batch.Changed)
	}
	if !opts.IgnoreDelete {
		events.Deleted = f.matching(opts.Pattern, batch.Deleted)
	}
	return events
}

// matching returns the URIs of paths matching pattern. Relative patterns
// are matched against the path relative to the workspace root.
func (f *FileSystemEvents) matching(pattern string, paths []string) []string {
	var uris []string
	for _, path := range paths {
		candidate := filepath.ToSlash(path)
		if !filepath.IsAbs(pattern) && f.root != "" {
			rel, err := filepath.Rel(f.root, path)
			if err != nil {
				continue
			}
			candidate = filepath.ToSlash(rel)
		}
		if ok, err := doublestar.Match(pattern, candidate); err == nil && ok {
			uris = append(uris, FileURI(path))
		}
	}
	return uris
}
