package exthost

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/handle"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// FileSystemWatcher receives the file events matching its glob pattern.
type FileSystemWatcher struct {
	handle  handle.Handle
	options protocol.WatchOptions
	dispose event.Disposable

	OnDidCreate event.Emitter[string]
	OnDidChange event.Emitter[string]
	OnDidDelete event.Emitter[string]
}

// Pattern returns the glob pattern.
func (w *FileSystemWatcher) Pattern() string { return w.options.Pattern }

// Dispose stops the watcher.
func (w *FileSystemWatcher) Dispose() { w.dispose.Dispose() }

func (w *FileSystemWatcher) fire(events protocol.FileSystemEvents) {
	for _, uri := range events.Created {
		w.OnDidCreate.Fire(uri)
	}
	for _, uri := range events.Changed {
		w.OnDidChange.Fire(uri)
	}
	for _, uri := range events.Deleted {
		w.OnDidDelete.Fire(uri)
	}
}

type fileWatchers struct {
	logger   *zap.Logger
	main     protocol.FileSystemEventServiceProxy
	watchers *handle.Arena[*FileSystemWatcher]
}

func newFileWatchers(s *Session) *fileWatchers {
	return &fileWatchers{
		logger:   s.logger.Named("filewatch"),
		main:     protocol.NewFileSystemEventServiceProxy(s.proto),
		watchers: handle.New[*FileSystemWatcher](),
	}
}

func (f *fileWatchers) methods() rpc.Methods {
	return rpc.Methods{
		"$onFileEvent": rpc.Action2(func(_ context.Context, h int, events protocol.FileSystemEvents) error {
			w, err := f.watchers.Get(handle.Handle(h))
			if err != nil {
				return fmt.Errorf("%w: watcher %d", rpc.ErrUnknownHandle, h)
			}
			w.fire(events)
			return nil
		}),
	}
}

func (f *fileWatchers) create(ctx context.Context, options protocol.WatchOptions) (*FileSystemWatcher, error) {
	if !doublestar.ValidatePattern(options.Pattern) {
		return nil, fmt.Errorf("%w: invalid glob pattern %q", rpc.ErrInvalidArguments, options.Pattern)
	}

	w := &FileSystemWatcher{options: options}
	h, err := f.watchers.Alloc(w)
	if err != nil {
		return nil, err
	}
	w.handle = h
	if err := f.main.Watch(ctx, int(h), options); err != nil {
		_, _ = f.watchers.Release(h)
		return nil, err
	}

	w.dispose = event.Once(func() {
		if _, err := f.watchers.Release(h); err != nil {
			return
		}
		if err := f.main.Unwatch(context.Background(), int(h)); err != nil {
			f.logger.Warn("failed to stop watcher", zap.Int("handle", int(h)), zap.Error(err))
		}
	})
	return w, nil
}
