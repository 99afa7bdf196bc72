package exthost

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/handle"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
)

// HoverProvider provides hover content.
type HoverProvider interface {
	ProvideHover(ctx context.Context, doc *Document, pos types.Position) (*types.Hover, error)
}

// HoverProviderFunc adapts a function to HoverProvider.
type HoverProviderFunc func(ctx context.Context, doc *Document, pos types.Position) (*types.Hover, error)

func (f HoverProviderFunc) ProvideHover(ctx context.Context, doc *Document, pos types.Position) (*types.Hover, error) {
	return f(ctx, doc, pos)
}

// CompletionItemProvider provides completion items.
type CompletionItemProvider interface {
	ProvideCompletionItems(ctx context.Context, doc *Document, pos types.Position, cc types.CompletionContext) (*types.CompletionList, error)
}

// CompletionItemResolver is implemented by completion providers that fill in
// item details lazily.
type CompletionItemResolver interface {
	ResolveCompletionItem(ctx context.Context, item *types.CompletionItem) (*types.CompletionItem, error)
}

// DefinitionProvider finds where a symbol is defined.
type DefinitionProvider interface {
	ProvideDefinition(ctx context.Context, doc *Document, pos types.Position) ([]types.Location, error)
}

// DefinitionProviderFunc adapts a function to DefinitionProvider.
type DefinitionProviderFunc func(ctx context.Context, doc *Document, pos types.Position) ([]types.Location, error)

func (f DefinitionProviderFunc) ProvideDefinition(ctx context.Context, doc *Document, pos types.Position) ([]types.Location, error) {
	return f(ctx, doc, pos)
}

// TypeDefinitionProvider finds where the type of a symbol is defined.
type TypeDefinitionProvider interface {
	ProvideTypeDefinition(ctx context.Context, doc *Document, pos types.Position) ([]types.Location, error)
}

// ReferenceProvider finds the references of a symbol.
type ReferenceProvider interface {
	ProvideReferences(ctx context.Context, doc *Document, pos types.Position, rc types.ReferenceContext) ([]types.Location, error)
}

// CodeLensProvider provides code lenses.
type CodeLensProvider interface {
	ProvideCodeLenses(ctx context.Context, doc *Document) ([]*types.CodeLens, error)
}

// CodeLensResolver is implemented by code lens providers that fill in the
// command lazily.
type CodeLensResolver interface {
	ResolveCodeLens(ctx context.Context, lens *types.CodeLens) (*types.CodeLens, error)
}

// CodeLensChangeNotifier is implemented by code lens providers that can tell
// when their lenses are outdated.
type CodeLensChangeNotifier interface {
	OnDidChangeCodeLenses(fn func()) event.Disposable
}

// FoldingRangeProvider provides folding ranges.
type FoldingRangeProvider interface {
	ProvideFoldingRanges(ctx context.Context, doc *Document, fc types.FoldingContext) ([]types.FoldingRange, error)
}

// FoldingRangeProviderFunc adapts a function to FoldingRangeProvider.
type FoldingRangeProviderFunc func(ctx context.Context, doc *Document, fc types.FoldingContext) ([]types.FoldingRange, error)

func (f FoldingRangeProviderFunc) ProvideFoldingRanges(ctx context.Context, doc *Document, fc types.FoldingContext) ([]types.FoldingRange, error) {
	return f(ctx, doc, fc)
}

// DocumentHighlightProvider highlights the occurrences of a symbol.
type DocumentHighlightProvider interface {
	ProvideDocumentHighlights(ctx context.Context, doc *Document, pos types.Position) ([]types.DocumentHighlight, error)
}

// DocumentColorProvider finds colors and offers ways to write them.
type DocumentColorProvider interface {
	ProvideDocumentColors(ctx context.Context, doc *Document) ([]types.ColorInformation, error)
	ProvideColorPresentations(ctx context.Context, doc *Document, color types.Color, r types.Range) ([]types.ColorPresentation, error)
}

// DocumentLinkProvider finds links.
type DocumentLinkProvider interface {
	ProvideDocumentLinks(ctx context.Context, doc *Document) ([]*types.DocumentLink, error)
}

// DocumentLinkResolver is implemented by link providers that fill in the
// target lazily.
type DocumentLinkResolver interface {
	ResolveDocumentLink(ctx context.Context, link *types.DocumentLink) (*types.DocumentLink, error)
}

// OnTypeFormattingEditProvider formats while typing.
type OnTypeFormattingEditProvider interface {
	ProvideOnTypeFormattingEdits(ctx context.Context, doc *Document, pos types.Position, ch string, opts types.FormattingOptions) ([]types.TextEdit, error)
}

// DocumentRangeFormattingEditProvider formats a range.
type DocumentRangeFormattingEditProvider interface {
	ProvideDocumentRangeFormattingEdits(ctx context.Context, doc *Document, r types.Range, opts types.FormattingOptions) ([]types.TextEdit, error)
}

// DocumentFormattingEditProvider formats a whole document.
type DocumentFormattingEditProvider interface {
	ProvideDocumentFormattingEdits(ctx context.Context, doc *Document, opts types.FormattingOptions) ([]types.TextEdit, error)
}

// DocumentFormattingEditProviderFunc adapts a function to
// DocumentFormattingEditProvider.
type DocumentFormattingEditProviderFunc func(ctx context.Context, doc *Document, opts types.FormattingOptions) ([]types.TextEdit, error)

func (f DocumentFormattingEditProviderFunc) ProvideDocumentFormattingEdits(ctx context.Context, doc *Document, opts types.FormattingOptions) ([]types.TextEdit, error) {
	return f(ctx, doc, opts)
}

// Match scores how well sel matches doc. Zero means no match.
func Match(sel selector.Selector, doc *Document) int {
	return selector.Score(sel, doc.URI(), doc.LanguageID(), true)
}

// adapter is a registered provider together with the state kept for it.
type adapter interface {
	dispose()
}

// Languages registers language feature providers with the main side and
// answers its requests for them. Providers are addressed by handle.
type Languages struct {
	logger   *zap.Logger
	main     protocol.LanguageFeaturesProxy
	docs     *Documents
	commands *Commands

	adapters *handle.Arena[adapter]

	completionCacheSize int
	codeLensCacheSize   int
	linkCacheSize       int
}

func newLanguages(s *Session, opts Options) (*Languages, error) {
	if s.Documents == nil || s.Commands == nil {
		return nil, fmt.Errorf("exthost: languages need documents and commands")
	}
	return &Languages{
		logger:              s.logger.Named("languages"),
		main:                protocol.NewLanguageFeaturesProxy(s.proto),
		docs:                s.Documents,
		commands:            s.Commands,
		adapters:            handle.New[adapter](),
		completionCacheSize: opts.CompletionCacheSize,
		codeLensCacheSize:   opts.CodeLensCacheSize,
		linkCacheSize:       opts.LinkCacheSize,
	}, nil
}

// register stores a, announces it through announce and returns the
// Disposable that undoes both.
func (l *Languages) register(a adapter, announce func(h int) error) (event.Disposable, error) {
	h, err := l.adapters.Alloc(a)
	if err != nil {
		return nil, err
	}
	if err := announce(int(h)); err != nil {
		_, _ = l.adapters.Release(h)
		a.dispose()
		return nil, err
	}

	return event.Once(func() {
		if _, err := l.adapters.Release(h); err != nil {
			return
		}
		a.dispose()
		if err := l.main.Unregister(context.Background(), int(h)); err != nil {
			l.logger.Warn("failed to unregister provider", zap.Int("handle", int(h)), zap.Error(err))
		}
	}), nil
}

func (l *Languages) registerSimple(ctx context.Context, method string, sel selector.Selector, a adapter) (event.Disposable, error) {
	return l.register(a, func(h int) error {
		return l.main.Register(ctx, method, h, sel)
	})
}

// RegisterHoverProvider registers p for documents matching sel.
func (l *Languages) RegisterHoverProvider(ctx context.Context, sel selector.Selector, p HoverProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerHoverProvider", sel, &hoverAdapter{provider: p})
}

// RegisterCompletionItemProvider registers p for documents matching sel.
// Typing one of triggerCharacters requests completion.
func (l *Languages) RegisterCompletionItemProvider(ctx context.Context, sel selector.Selector, p CompletionItemProvider, triggerCharacters ...string) (event.Disposable, error) {
	a, err := newCompletionAdapter(p, l.commands, l.completionCacheSize, l.logger)
	if err != nil {
		return nil, err
	}
	_, supportsResolve := p.(CompletionItemResolver)
	return l.register(a, func(h int) error {
		return l.main.RegisterCompletionSupport(ctx, h, sel, triggerCharacters, supportsResolve)
	})
}

// RegisterDefinitionProvider registers p for documents matching sel.
func (l *Languages) RegisterDefinitionProvider(ctx context.Context, sel selector.Selector, p DefinitionProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerDefinitionSupport", sel, &definitionAdapter{provider: p})
}

// RegisterTypeDefinitionProvider registers p for documents matching sel.
func (l *Languages) RegisterTypeDefinitionProvider(ctx context.Context, sel selector.Selector, p TypeDefinitionProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerTypeDefinitionSupport", sel, &typeDefinitionAdapter{provider: p})
}

// RegisterReferenceProvider registers p for documents matching sel.
func (l *Languages) RegisterReferenceProvider(ctx context.Context, sel selector.Selector, p ReferenceProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerReferenceSupport", sel, &referenceAdapter{provider: p})
}

// RegisterCodeLensProvider registers p for documents matching sel. When p
// implements CodeLensChangeNotifier its change signals are forwarded.
func (l *Languages) RegisterCodeLensProvider(ctx context.Context, sel selector.Selector, p CodeLensProvider) (event.Disposable, error) {
	a, err := newCodeLensAdapter(p, l.commands, l.codeLensCacheSize)
	if err != nil {
		return nil, err
	}
	return l.register(a, func(h int) error {
		notifier, ok := p.(CodeLensChangeNotifier)
		if !ok {
			return l.main.RegisterCodeLensSupport(ctx, h, sel, nil)
		}
		eventHandle := h
		if err := l.main.RegisterCodeLensSupport(ctx, h, sel, &eventHandle); err != nil {
			return err
		}
		a.subscription = notifier.OnDidChangeCodeLenses(func() {
			if err := l.main.EmitCodeLensEvent(context.Background(), eventHandle); err != nil {
				l.logger.Warn("failed to signal code lens change", zap.Int("handle", eventHandle), zap.Error(err))
			}
		})
		return nil
	})
}

// RegisterFoldingRangeProvider registers p for documents matching sel.
func (l *Languages) RegisterFoldingRangeProvider(ctx context.Context, sel selector.Selector, p FoldingRangeProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerFoldingRangeProvider", sel, &foldingAdapter{provider: p})
}

// RegisterDocumentHighlightProvider registers p for documents matching sel.
func (l *Languages) RegisterDocumentHighlightProvider(ctx context.Context, sel selector.Selector, p DocumentHighlightProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerDocumentHighlightProvider", sel, &highlightAdapter{provider: p})
}

// RegisterColorProvider registers p for documents matching sel.
func (l *Languages) RegisterColorProvider(ctx context.Context, sel selector.Selector, p DocumentColorProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerDocumentColorProvider", sel, &colorAdapter{provider: p})
}

// RegisterDocumentLinkProvider registers p for documents matching sel.
func (l *Languages) RegisterDocumentLinkProvider(ctx context.Context, sel selector.Selector, p DocumentLinkProvider) (event.Disposable, error) {
	a, err := newLinkAdapter(p, l.linkCacheSize)
	if err != nil {
		return nil, err
	}
	return l.register(a, func(h int) error {
		return l.main.RegisterDocumentLinkProvider(ctx, h, sel, a.resolver != nil)
	})
}

// RegisterOnTypeFormattingEditProvider registers p for documents matching
// sel. Typing one of triggerCharacters requests edits.
func (l *Languages) RegisterOnTypeFormattingEditProvider(ctx context.Context, sel selector.Selector, p OnTypeFormattingEditProvider, triggerCharacters ...string) (event.Disposable, error) {
	if len(triggerCharacters) == 0 {
		return nil, fmt.Errorf("%w: on type formatting needs trigger characters", rpc.ErrInvalidArguments)
	}
	return l.register(&onTypeFormattingAdapter{provider: p}, func(h int) error {
		return l.main.RegisterOnTypeFormattingSupport(ctx, h, sel, triggerCharacters)
	})
}

// RegisterDocumentRangeFormattingEditProvider registers p for documents
// matching sel.
func (l *Languages) RegisterDocumentRangeFormattingEditProvider(ctx context.Context, sel selector.Selector, p DocumentRangeFormattingEditProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerRangeFormattingSupport", sel, &rangeFormattingAdapter{provider: p})
}

// RegisterDocumentFormattingEditProvider registers p for documents matching
// sel.
func (l *Languages) RegisterDocumentFormattingEditProvider(ctx context.Context, sel selector.Selector, p DocumentFormattingEditProvider) (event.Disposable, error) {
	return l.registerSimple(ctx, "$registerDocumentFormattingSupport", sel, &formattingAdapter{provider: p})
}

// adapterFor returns the adapter registered under h. A released handle or
// an adapter of another feature is reported as an unknown handle.
func adapterFor[A adapter](l *Languages, h int) (A, error) {
	var zero A
	v, err := l.adapters.Get(handle.Handle(h))
	if err != nil {
		return zero, fmt.Errorf("%w: handle %d: %v", rpc.ErrUnknownHandle, h, err)
	}
	a, ok := v.(A)
	if !ok {
		return zero, fmt.Errorf("%w: handle %d serves another feature", rpc.ErrUnknownHandle, h)
	}
	return a, nil
}

func (l *Languages) document(uri string) (*Document, error) {
	doc, ok := l.docs.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: document %s is not mirrored", rpc.ErrNotFound, uri)
	}
	return doc, nil
}

// resolve looks up the adapter and the document of a request.
func resolve[A adapter](l *Languages, h int, uri string) (A, *Document, error) {
	a, err := adapterFor[A](l, h)
	if err != nil {
		return a, nil, err
	}
	doc, err := l.document(uri)
	if err != nil {
		return a, nil, err
	}
	return a, doc, nil
}
