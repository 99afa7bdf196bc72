package exthost

import (
	"context"
	"fmt"

	"github.com/shopware/exthost/internal/protocol"
)

// Workspace gives access to documents by URI, the configuration, state
// storage and file events.
type Workspace struct {
	docs          *Documents
	main          protocol.DocumentsProxy
	configuration *Configuration
	watchers      *fileWatchers

	// GlobalState is shared by every workspace, WorkspaceState is not.
	GlobalState    *Memento
	WorkspaceState *Memento
}

func newWorkspace(s *Session) *Workspace {
	storage := protocol.NewStorageProxy(s.proto)
	return &Workspace{
		docs:           s.Documents,
		main:           protocol.NewDocumentsProxy(s.proto),
		configuration:  newConfiguration(s),
		watchers:       newFileWatchers(s),
		GlobalState:    newMemento(storage, true),
		WorkspaceState: newMemento(storage, false),
	}
}

// Configuration returns the mirrored configuration.
func (w *Workspace) Configuration() *Configuration { return w.configuration }

// GetConfiguration returns a snapshot of section.
func (w *Workspace) GetConfiguration(section string) *WorkspaceConfiguration {
	return w.configuration.Get(section)
}

// TextDocuments returns every mirrored document.
func (w *Workspace) TextDocuments() []*Document { return w.docs.All() }

// OpenTextDocument returns the document at uri, asking the main side to open
// it when it is not mirrored yet.
func (w *Workspace) OpenTextDocument(ctx context.Context, uri string) (*Document, error) {
	if doc, ok := w.docs.Get(uri); ok {
		return doc, nil
	}
	opened, err := w.main.TryOpenDocument(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	return w.docs.waitForDocument(ctx, opened)
}

// NewUntitledDocument creates a document without file.
func (w *Workspace) NewUntitledDocument(ctx context.Context, language, content string) (*Document, error) {
	uri, err := w.main.TryCreateDocument(ctx, protocol.CreateDocumentOptions{Language: language, Content: content})
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return w.docs.waitForDocument(ctx, uri)
}

// CreateFileSystemWatcher watches the files matching pattern. Relative
// patterns are matched against paths relative to the workspace root.
func (w *Workspace) CreateFileSystemWatcher(ctx context.Context, pattern string, ignoreCreate, ignoreChange, ignoreDelete bool) (*FileSystemWatcher, error) {
	return w.watchers.create(ctx, protocol.WatchOptions{
		Pattern:      pattern,
		IgnoreCreate: ignoreCreate,
		IgnoreChange: ignoreChange,
		IgnoreDelete: ignoreDelete,
	})
}
