// Package snippets is a built-in extension that indexes storefront snippet
// files and offers their keys in templates and scripts.
package snippets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
	"github.com/shopware/exthost/internal/syntax"
	"github.com/shopware/exthost/internal/textmodel"
)

const (
	ID = "shopware.snippets"

	// Pattern matches the snippet files below the workspace.
	Pattern = "**/Resources/snippet/**/*.json"

	// FilesCommand returns the URIs of the indexed snippet files, default
	// locale first.
	FilesCommand = "snippets.files"
	// LookupCommand returns the text of a snippet key, or null.
	LookupCommand = "snippets.lookup"
)

var keyPattern = regexp.MustCompile(`[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)+`)

// loadTimeout bounds opening a snippet file reported by the watcher.
const loadTimeout = 10 * time.Second

// Extension provides completion, hover and definition for snippet keys.
type Extension struct {
	registry *syntax.Registry
	logger   *zap.Logger
	index    *Index

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	disposables []event.Disposable
}

// New returns the extension. A nil logger discards logs.
func New(registry *syntax.Registry, logger *zap.Logger) *Extension {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Extension{
		registry: registry,
		logger:   logger.Named("snippets"),
		index:    NewIndex(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *Extension) ID() string { return ID }

// Index returns the snippet index.
func (e *Extension) Index() *Index { return e.index }

func (e *Extension) Activate(ctx context.Context, s *exthost.Session) error {
	for _, doc := range s.Workspace.TextDocuments() {
		e.indexDocument(doc)
	}
	e.disposables = append(e.disposables,
		s.Documents.OnDidOpen.Subscribe(e.indexDocument),
		s.Documents.OnDidChange.Subscribe(func(ev exthost.DocumentChangeEvent) { e.indexDocument(ev.Document) }),
	)

	watcher, err := s.Workspace.CreateFileSystemWatcher(ctx, Pattern, false, false, false)
	if err != nil {
		e.Dispose()
		return fmt.Errorf("failed to watch snippet files: %w", err)
	}
	load := func(uri string) { e.load(s, uri) }
	e.disposables = append(e.disposables,
		watcher,
		watcher.OnDidCreate.Subscribe(load),
		watcher.OnDidChange.Subscribe(load),
		watcher.OnDidDelete.Subscribe(e.index.Remove),
	)

	sel := selector.Language("twig", "javascript", "php")
	register := []func() (event.Disposable, error){
		func() (event.Disposable, error) {
			return s.Languages.RegisterCompletionItemProvider(ctx, sel, e, `'`, `"`)
		},
		func() (event.Disposable, error) { return s.Languages.RegisterHoverProvider(ctx, sel, e) },
		func() (event.Disposable, error) { return s.Languages.RegisterDefinitionProvider(ctx, sel, e) },
		func() (event.Disposable, error) {
			return s.Commands.RegisterCommand(ctx, FilesCommand, func(context.Context, ...any) (any, error) {
				return e.index.Files(), nil
			})
		},
		func() (event.Disposable, error) {
			return s.Commands.RegisterCommand(ctx, LookupCommand, e.lookup)
		},
	}
	for _, r := range register {
		d, err := r()
		if err != nil {
			e.Dispose()
			return err
		}
		e.disposables = append(e.disposables, d)
	}

	e.logger.Debug("activated", zap.Int("files", len(e.index.Files())))
	return nil
}

// Dispose unregisters what Activate registered and stops pending loads.
func (e *Extension) Dispose() {
	e.cancel()
	event.Combine(e.disposables...).Dispose()
	e.disposables = nil
	e.wg.Wait()
}

func isSnippetFile(uri string) bool {
	return strings.Contains(uri, "/Resources/snippet/") && strings.HasSuffix(uri, ".json") && !strings.Contains(uri, "/_fixtures/")
}

// load opens uri on the main side. Indexing happens once the mirror fires
// OnDidOpen. Opening waits for events, so it must not block the listener.
func (e *Extension) load(s *exthost.Session, uri string) {
	if !isSnippetFile(uri) {
		return
	}
	if doc, ok := s.Documents.Get(uri); ok {
		e.indexDocument(doc)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, loadTimeout)
		defer cancel()
		if _, err := s.Workspace.OpenTextDocument(ctx, uri); err != nil {
			e.logger.Warn("failed to open snippet file", zap.String("uri", uri), zap.Error(err))
		}
	}()
}

func (e *Extension) indexDocument(doc *exthost.Document) {
	if !isSnippetFile(doc.URI()) {
		return
	}
	src := []byte(doc.Text())
	tree, err := e.registry.Parse("json", src)
	if err != nil {
		e.logger.Warn("failed to parse snippet file", zap.String("uri", doc.URI()), zap.Error(err))
		return
	}
	defer tree.Close()

	snippets := Parse(tree.RootNode(), src, doc.URI())
	e.index.Update(doc.URI(), snippets)
	e.logger.Debug("indexed snippet file", zap.String("uri", doc.URI()), zap.Int("snippets", len(snippets)))
}

// quotedPrefix returns the text between the opening quote and pos, and the
// UTF-16 column after the quote. ok is false outside of a string literal.
func quotedPrefix(doc *exthost.Document, pos types.Position) (prefix string, start int, ok bool) {
	line, err := doc.LineAt(pos.Line)
	if err != nil {
		return "", 0, false
	}
	head := line.Text[:textmodel.ByteOffset(line.Text, pos.Character+1)]

	open := -1
	var quote byte
	for i := 0; i < len(head); i++ {
		switch c := head[i]; {
		case open >= 0 && c == quote:
			open = -1
		case open < 0 && (c == '\'' || c == '"'):
			open, quote = i, c
		}
	}
	if open < 0 {
		return "", 0, false
	}
	prefix = head[open+1:]
	return prefix, pos.Character - textmodel.UTF16Len(prefix), true
}

// ProvideCompletionItems offers the keys matching the string literal typed
// so far.
func (e *Extension) ProvideCompletionItems(ctx context.Context, doc *exthost.Document, pos types.Position, _ types.CompletionContext) (*types.CompletionList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, start, ok := quotedPrefix(doc, pos)
	if !ok {
		return nil, nil
	}
	replace := types.NewRangeOf(pos.Line, start, pos.Line, pos.Character)

	list := &types.CompletionList{}
	for _, key := range e.index.Keys(prefix) {
		s, _ := e.index.Lookup(key)
		list.Items = append(list.Items, &types.CompletionItem{
			Label:  key,
			Kind:   types.CompletionText,
			Detail: s.Text,
			Range:  &replace,
		})
	}
	return list, nil
}

// ResolveCompletionItem adds where the snippet is defined.
func (e *Extension) ResolveCompletionItem(_ context.Context, item *types.CompletionItem) (*types.CompletionItem, error) {
	s, ok := e.index.Lookup(item.Label)
	if !ok {
		return item, nil
	}
	item.Documentation = types.MarkdownString{Value: fmt.Sprintf("%s\n\n`%s:%d`", s.Text, s.URI, s.Line+1)}
	return item, nil
}

func (e *Extension) snippetAt(doc *exthost.Document, pos types.Position) (Snippet, types.Range, bool) {
	r, ok := doc.WordRangeAtPosition(pos, keyPattern)
	if !ok {
		return Snippet{}, types.Range{}, false
	}
	s, ok := e.index.Lookup(doc.TextInRange(r))
	return s, r, ok
}

func (e *Extension) ProvideHover(_ context.Context, doc *exthost.Document, pos types.Position) (*types.Hover, error) {
	s, r, ok := e.snippetAt(doc, pos)
	if !ok {
		return nil, nil
	}
	return &types.Hover{Contents: []types.MarkedString{types.Text(s.Text)}, Range: &r}, nil
}

func (e *Extension) ProvideDefinition(_ context.Context, doc *exthost.Document, pos types.Position) ([]types.Location, error) {
	s, _, ok := e.snippetAt(doc, pos)
	if !ok {
		return nil, nil
	}
	return []types.Location{{URI: s.URI, Range: types.NewRangeOf(s.Line, 0, s.Line, 0)}}, nil
}

func (e *Extension) lookup(_ context.Context, args ...any) (any, error) {
	key, err := exthost.DecodeArg[string](args, 0)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty snippet key", rpc.ErrInvalidArguments)
	}
	s, ok := e.index.Lookup(key)
	if !ok {
		return nil, nil
	}
	return s.Text, nil
}
