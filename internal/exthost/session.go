// Package exthost is the extension side of the extension host protocol. It
// mirrors the documents, editors and configuration owned by the main side,
// runs the commands and language feature providers of extensions, and
// exposes the API extensions program against.
package exthost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// ErrStarted is returned by Start when the session already started.
var ErrStarted = errors.New("exthost: session already started")

// Default cache sizes of the two-phase language features.
const (
	DefaultCompletionCacheSize = 64
	DefaultCodeLensCacheSize   = 64
	DefaultLinkCacheSize       = 64
)

// Options configure a Session.
type Options struct {
	Logger *zap.Logger

	// Sizes of the provider result caches kept for resolve calls. Zero
	// selects the defaults.
	CompletionCacheSize int
	CodeLensCacheSize   int
	LinkCacheSize       int
}

// Extension is activated once the session has received the initial state.
type Extension interface {
	ID() string
	Activate(ctx context.Context, s *Session) error
}

// Session is one extension side connection to the main side.
type Session struct {
	proto  *rpc.Protocol
	logger *zap.Logger

	Commands  *Commands
	Documents *Documents
	Editors   *Editors
	Languages *Languages
	Workspace *Workspace
	Window    *Window

	mu         sync.Mutex
	started    bool
	extensions []Extension

	// initialized is closed once the first delta, the initial state, has
	// been applied.
	initialized     chan struct{}
	initializedOnce sync.Once

	mirrorChanged *signal
}

// NewSession creates the extension side services and sets every ExtHost
// identifier on p. p must be an extension side protocol that is not
// connected yet.
func NewSession(p *rpc.Protocol, opts Options) (*Session, error) {
	if p.Side() != rpc.SideExtension {
		return nil, fmt.Errorf("exthost: protocol is on the %s side", p.Side())
	}
	if opts.Logger == nil {
		opts.Logger = p.Logger()
	}
	if opts.CompletionCacheSize <= 0 {
		opts.CompletionCacheSize = DefaultCompletionCacheSize
	}
	if opts.CodeLensCacheSize <= 0 {
		opts.CodeLensCacheSize = DefaultCodeLensCacheSize
	}
	if opts.LinkCacheSize <= 0 {
		opts.LinkCacheSize = DefaultLinkCacheSize
	}

	s := &Session{
		proto:         p,
		logger:        opts.Logger,
		initialized:   make(chan struct{}),
		mirrorChanged: newSignal(),
	}
	s.Commands = newCommands(s)
	s.Documents = newDocuments(s)
	s.Editors = newEditors(s)
	s.Workspace = newWorkspace(s)
	s.Window = newWindow(s)

	var err error
	if s.Languages, err = newLanguages(s, opts); err != nil {
		return nil, err
	}

	rpc.Set(p, protocol.ExtHostCommands, s.Commands, s.Commands.methods())
	rpc.Set(p, protocol.ExtHostDocumentsAndEditors, s, rpc.Methods{
		"$acceptDocumentsAndEditorsDelta": rpc.Action1(func(_ context.Context, delta protocol.DocumentsAndEditorsDelta) error {
			s.acceptDelta(delta)
			return nil
		}),
	})
	rpc.Set(p, protocol.ExtHostDocuments, s.Documents, s.Documents.methods())
	rpc.Set(p, protocol.ExtHostEditors, s.Editors, s.Editors.methods())
	rpc.Set(p, protocol.ExtHostLanguageFeatures, s.Languages, s.Languages.methods())
	rpc.Set(p, protocol.ExtHostConfiguration, s.Workspace.configuration, s.Workspace.configuration.methods())
	rpc.Set(p, protocol.ExtHostFileSystemEventService, s.Workspace.watchers, s.Workspace.watchers.methods())

	return s, nil
}

// Protocol returns the protocol the session serves.
func (s *Session) Protocol() *rpc.Protocol { return s.proto }

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Start fetches the initial documents, editors and configuration, activates
// extensions, announces the registered commands and finally tells the main
// side the extension host is ready. A failing extension is logged and
// skipped.
func (s *Session) Start(ctx context.Context, extensions ...Extension) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	s.extensions = append(s.extensions, extensions...)
	s.mu.Unlock()

	// The initial state arrives as the first delta event as well; applying
	// it from the event queue keeps it ordered before later changes.
	if _, err := protocol.NewDocumentsAndEditorsProxy(s.proto).GetInitialState(ctx); err != nil {
		return fmt.Errorf("failed to get the initial state: %w", err)
	}
	select {
	case <-s.initialized:
	case <-ctx.Done():
		return fmt.Errorf("waiting for the initial state: %w", ctx.Err())
	}

	config, err := protocol.NewConfigurationProxy(s.proto).GetConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("failed to get the configuration: %w", err)
	}
	s.Workspace.configuration.init(config)

	for _, ext := range extensions {
		if err := s.activate(ctx, ext); err != nil {
			s.logger.Error("failed to activate extension", zap.String("extension", ext.ID()), zap.Error(err))
		}
	}

	if err := s.Commands.announce(ctx); err != nil {
		return err
	}
	if err := protocol.NewExtensionServiceProxy(s.proto).OnExtensionHostReady(ctx); err != nil {
		return fmt.Errorf("failed to announce readiness: %w", err)
	}
	s.logger.Info("extension host started", zap.Int("extensions", len(extensions)))
	return nil
}

func (s *Session) activate(ctx context.Context, ext Extension) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during activation: %v", r)
		}
	}()
	s.logger.Debug("activating extension", zap.String("extension", ext.ID()))
	return ext.Activate(ctx, s)
}

// Extensions returns the extensions passed to Start.
func (s *Session) Extensions() []Extension {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Extension(nil), s.extensions...)
}

// Close disposes the extensions that implement event.Disposable, in reverse
// activation order, and closes the connection.
func (s *Session) Close() error {
	exts := s.Extensions()
	for i := len(exts) - 1; i >= 0; i-- {
		if d, ok := exts[i].(event.Disposable); ok {
			d.Dispose()
		}
	}
	return s.proto.Close()
}

// acceptDelta applies documents first, so added editors find their
// document, and removes documents last.
func (s *Session) acceptDelta(delta protocol.DocumentsAndEditorsDelta) {
	for _, data := range delta.AddedDocuments {
		s.Documents.add(data)
	}
	s.Editors.accept(delta)
	for _, uri := range delta.RemovedDocuments {
		s.Documents.remove(uri)
	}
	s.initializedOnce.Do(func() { close(s.initialized) })
}
