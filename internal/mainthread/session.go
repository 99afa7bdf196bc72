// Package mainthread is the main side of the extension host protocol. It
// owns the authoritative documents, editors and configuration, forwards
// language feature requests to the extension side, and serves the
// MainThread* identifiers.
package mainthread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/watcher"
)

// Options configure a Session.
type Options struct {
	Logger *zap.Logger
	// Content resolves and saves documents. Defaults to FileContentProvider.
	Content ContentProvider
	// Shell shows messages, quick picks and status bar entries. Defaults to
	// a HeadlessShell.
	Shell Shell
	// Workspace is the root folder. File watching and workspace settings
	// are only available with a workspace.
	Workspace string
	// DataDir holds the storage database and user settings. A temporary
	// directory is used when empty.
	DataDir string
	// Watch enables the file system event service.
	Watch   bool
	Watcher watcher.Options
	// Languages are known before any document opens.
	Languages []string
	// ConfigurationDefaults is the bottom configuration layer.
	ConfigurationDefaults json.RawMessage
}

// Session is one main side connection to an extension host.
type Session struct {
	proto  *rpc.Protocol
	logger *zap.Logger

	Commands      *Commands
	Models        *Models
	Editors       *Editors
	Languages     *LanguageFeatures
	Configuration *Configuration
	Storage       *Storage
	FileEvents    *FileSystemEvents
	Window        *Window

	// state guards models, editors and the snapshot last sent. Pushes to the
	// extension side happen while it is held, so they leave in mutation
	// order.
	state  sync.Mutex
	synced bool
	sent   Snapshot

	onReady event.Emitter[struct{}]
	tempDir string

	extDocuments protocol.ExtDocumentsProxy
	extDelta     protocol.ExtDocumentsAndEditorsProxy
	extEditors   protocol.ExtEditorsProxy
}

// NewSession creates the main side services and sets every MainThread
// identifier on p. p must be a main side protocol that is not connected yet.
func NewSession(p *rpc.Protocol, opts Options) (*Session, error) {
	if p.Side() != rpc.SideMain {
		return nil, fmt.Errorf("mainthread: protocol is on the %s side", p.Side())
	}
	if opts.Logger == nil {
		opts.Logger = p.Logger()
	}
	if opts.Content == nil {
		opts.Content = FileContentProvider{}
	}
	if opts.Shell == nil {
		opts.Shell = NewHeadlessShell(opts.Logger)
	}

	s := &Session{
		proto:        p,
		logger:       opts.Logger,
		extDocuments: protocol.NewExtDocumentsProxy(p),
		extDelta:     protocol.NewExtDocumentsAndEditorsProxy(p),
		extEditors:   protocol.NewExtEditorsProxy(p),
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dir, err := os.MkdirTemp("", "exthost-")
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		s.tempDir = dir
		dataDir = dir
	}

	s.Commands = newCommands(s)
	s.Languages = newLanguageFeatures(s, opts.Languages)
	s.Models = newModels(s, opts.Content)
	s.Editors = newEditors(s)
	s.Window = newWindow(s, opts.Shell)

	var err error
	if s.Storage, err = openStorage(filepath.Join(dataDir, "storage.db"), opts.Workspace); err != nil {
		s.cleanup()
		return nil, err
	}

	workspaceSettings := filepath.Join(dataDir, "workspace-settings.json")
	if opts.Workspace != "" {
		workspaceSettings = filepath.Join(opts.Workspace, ".exthost", "settings.json")
	}
	s.Configuration, err = newConfiguration(s, opts.ConfigurationDefaults,
		filepath.Join(dataDir, "settings.json"), workspaceSettings)
	if err != nil {
		s.cleanup()
		return nil, err
	}

	s.FileEvents = newFileSystemEvents(s, opts.Workspace, opts.Watcher)
	if opts.Watch && opts.Workspace != "" {
		if err := s.FileEvents.start(); err != nil {
			s.cleanup()
			return nil, err
		}
	}

	rpc.Set(p, protocol.MainThreadCommands, s.Commands, s.Commands.methods())
	rpc.Set(p, protocol.MainThreadExtensionService, s, rpc.Methods{
		"$onExtensionHostReady": rpc.Action0(s.onExtensionHostReady),
	})
	rpc.Set(p, protocol.MainThreadDocuments, s.Models, s.Models.methods())
	rpc.Set(p, protocol.MainThreadDocumentsAndEditors, s, rpc.Methods{
		"$getInitialState": rpc.Func0(s.getInitialState),
	})
	rpc.Set(p, protocol.MainThreadEditors, s.Editors, s.Editors.methods())
	rpc.Set(p, protocol.MainThreadLanguageFeatures, s.Languages, s.Languages.methods())
	rpc.Set(p, protocol.MainThreadStatusBar, s.Window, s.Window.statusBarMethods())
	rpc.Set(p, protocol.MainThreadMessageService, s.Window, s.Window.messageMethods())
	rpc.Set(p, protocol.MainThreadQuickOpen, s.Window, s.Window.quickOpenMethods())
	rpc.Set(p, protocol.MainThreadStorage, s.Storage, s.Storage.methods())
	rpc.Set(p, protocol.MainThreadConfiguration, s.Configuration, s.Configuration.methods())
	rpc.Set(p, protocol.MainThreadFileSystemEventService, s.FileEvents, s.FileEvents.methods())

	return s, nil
}

// Protocol returns the protocol the session serves.
func (s *Session) Protocol() *rpc.Protocol { return s.proto }

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// OnReady subscribes to the extension host becoming ready.
func (s *Session) OnReady(fn func()) event.Disposable {
	return s.onReady.Subscribe(func(struct{}) { fn() })
}

// Close stops the file watcher, closes storage and the connection.
func (s *Session) Close() error {
	s.cleanup()
	return s.proto.Close()
}

func (s *Session) cleanup() {
	if s.FileEvents != nil {
		s.FileEvents.stop()
	}
	if s.Storage != nil {
		if err := s.Storage.close(); err != nil {
			s.logger.Warn("failed to close storage", zap.Error(err))
		}
	}
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

func (s *Session) onExtensionHostReady(context.Context) error {
	if s.Commands.markReady() {
		s.logger.Info("extension host ready")
		s.onReady.Fire(struct{}{})
	}
	return nil
}

// getInitialState returns every open document and editor and starts
// incremental pushes from there. The same delta is also pushed as the first
// event, since the reply may reach the extension side after pushes that
// follow it.
func (s *Session) getInitialState(context.Context) (protocol.DocumentsAndEditorsDelta, error) {
	s.state.Lock()
	defer s.state.Unlock()

	s.sent = Snapshot{}
	current := s.snapshotLocked()
	s.sent = current
	s.synced = true
	delta := ComputeDelta(Snapshot{}, current)
	s.notify("$acceptDocumentsAndEditorsDelta", s.extDelta.AcceptDocumentsAndEditorsDelta(context.Background(), delta))
	return delta, nil
}

// publishLocked sends the difference between the last sent snapshot and the
// current state.
func (s *Session) publishLocked() {
	if !s.synced {
		return
	}
	current := s.snapshotLocked()
	delta := ComputeDelta(s.sent, current)
	s.sent = current
	if delta.IsEmpty() {
		return
	}
	s.notify("$acceptDocumentsAndEditorsDelta", s.extDelta.AcceptDocumentsAndEditorsDelta(context.Background(), delta))
}

func (s *Session) isSynced() bool {
	s.state.Lock()
	defer s.state.Unlock()
	return s.synced
}

// notify logs a failed push. Pushes are fire-and-forget.
func (s *Session) notify(method string, err error) {
	if err == nil || errors.Is(err, rpc.ErrNotConnected) {
		return
	}
	s.logger.Warn("failed to push state", zap.String("method", method), zap.Error(err))
}
