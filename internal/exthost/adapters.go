package exthost

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/typeconvert"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// missingCommand is shown for code lenses that stay unresolved.
var missingCommand = protocol.Command{ID: "missing", Title: "<<MISSING COMMAND>>"}

func (l *Languages) methods() rpc.Methods {
	return rpc.Methods{
		"$provideHover":                        rpc.Func3(l.provideHover),
		"$provideCompletionItems":              rpc.Func4(l.provideCompletionItems),
		"$resolveCompletionItem":               rpc.Func4(l.resolveCompletionItem),
		"$releaseCompletionItems":              rpc.Action2(l.releaseCompletionItems),
		"$provideDefinition":                   rpc.Func3(l.provideDefinition),
		"$provideTypeDefinition":               rpc.Func3(l.provideTypeDefinition),
		"$provideReferences":                   rpc.Func4(l.provideReferences),
		"$provideCodeLenses":                   rpc.Func2(l.provideCodeLenses),
		"$resolveCodeLens":                     rpc.Func3(l.resolveCodeLens),
		"$releaseCodeLenses":                   rpc.Action2(l.releaseCodeLenses),
		"$provideFoldingRanges":                rpc.Func3(l.provideFoldingRanges),
		"$provideDocumentHighlights":           rpc.Func3(l.provideDocumentHighlights),
		"$provideDocumentColors":               rpc.Func2(l.provideDocumentColors),
		"$provideColorPresentations":           rpc.Func3(l.provideColorPresentations),
		"$provideDocumentLinks":                rpc.Func2(l.provideDocumentLinks),
		"$resolveDocumentLink":                 rpc.Func2(l.resolveDocumentLink),
		"$releaseDocumentLinks":                rpc.Action2(l.releaseDocumentLinks),
		"$provideOnTypeFormattingEdits":        rpc.Func5(l.provideOnTypeFormattingEdits),
		"$provideDocumentRangeFormattingEdits": rpc.Func4(l.provideDocumentRangeFormattingEdits),
		"$provideDocumentFormattingEdits":      rpc.Func3(l.provideDocumentFormattingEdits),
	}
}

type hoverAdapter struct{ provider HoverProvider }

func (*hoverAdapter) dispose() {}

// provideHover defaults the hover range to the word at the position, or to
// the position itself.
func (l *Languages) provideHover(ctx context.Context, h int, uri string, pos protocol.Position) (*protocol.Hover, error) {
	a, doc, err := resolve[*hoverAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	p := typeconvert.ToPosition(pos)
	hover, err := a.provider.ProvideHover(ctx, doc, p)
	if err != nil || hover == nil {
		return nil, err
	}
	if hover.Range == nil {
		r, ok := doc.WordRangeAtPosition(p, nil)
		if !ok {
			r = types.NewRange(p, p)
		}
		hover.Range = &r
	}
	return typeconvert.FromHover(hover), nil
}

// completionBatch is one provider result kept for resolve calls.
type completionBatch struct {
	items     []*types.CompletionItem
	delegates []string
}

type completionAdapter struct {
	provider CompletionItemProvider
	resolver CompletionItemResolver
	commands *Commands
	logger   *zap.Logger

	mu     sync.Mutex
	nextID int
	cache  *lru.Cache[int, *completionBatch]
}

func newCompletionAdapter(p CompletionItemProvider, commands *Commands, size int, logger *zap.Logger) (*completionAdapter, error) {
	a := &completionAdapter{provider: p, commands: commands, logger: logger}
	a.resolver, _ = p.(CompletionItemResolver)

	cache, err := lru.NewWithEvict(size, func(_ int, b *completionBatch) {
		commands.releaseDelegates(b.delegates)
	})
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a, nil
}

func (a *completionAdapter) dispose() { a.cache.Purge() }

// convert turns item i of batch id into a suggestion. Delegated commands are
// recorded on the batch. Callers hold a.mu.
func (a *completionAdapter) convert(id, i int, b *completionBatch, item *types.CompletionItem) (protocol.Suggestion, error) {
	cmd := a.commands.toProtocol(item.Command, &b.delegates)
	s, err := typeconvert.FromCompletionItem(item, cmd)
	if err != nil {
		return s, err
	}
	s.CacheID = &protocol.CacheID{ParentID: id, ItemID: i}
	return s, nil
}

func (l *Languages) provideCompletionItems(ctx context.Context, h int, uri string, pos protocol.Position, cc protocol.CompletionContext) (*protocol.SuggestResult, error) {
	a, doc, err := resolve[*completionAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	list, err := a.provider.ProvideCompletionItems(ctx, doc, typeconvert.ToPosition(pos), typeconvert.ToCompletionContext(cc))
	if err != nil || list == nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	b := &completionBatch{items: list.Items}
	result := &protocol.SuggestResult{Suggestions: []protocol.Suggestion{}, Incomplete: list.IsIncomplete, CacheID: id}
	for i, item := range list.Items {
		s, err := a.convert(id, i, b, item)
		if err != nil {
			a.logger.Warn("skipping completion item", zap.Int("handle", h), zap.Int("item", i), zap.Error(err))
			continue
		}
		result.Suggestions = append(result.Suggestions, s)
	}
	a.cache.Add(id, b)
	return result, nil
}

// resolveCompletionItem returns nil when the batch was released or evicted.
func (l *Languages) resolveCompletionItem(ctx context.Context, h int, uri string, _ protocol.Position, id protocol.CacheID) (*protocol.Suggestion, error) {
	a, err := adapterFor[*completionAdapter](l, h)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	b, ok := a.cache.Get(id.ParentID)
	if !ok || id.ItemID < 0 || id.ItemID >= len(b.items) {
		a.mu.Unlock()
		return nil, nil
	}
	item := b.items[id.ItemID]
	a.mu.Unlock()

	if a.resolver != nil {
		resolved, err := a.resolver.ResolveCompletionItem(ctx, item)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			item = resolved
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	b.items[id.ItemID] = item
	s, err := a.convert(id.ParentID, id.ItemID, b, item)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (l *Languages) releaseCompletionItems(_ context.Context, h, id int) error {
	a, err := adapterFor[*completionAdapter](l, h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cache.Remove(id)
	a.mu.Unlock()
	return nil
}

func (a *completionAdapter) cached() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.Len()
}

type definitionAdapter struct{ provider DefinitionProvider }

func (*definitionAdapter) dispose() {}

func (l *Languages) provideDefinition(ctx context.Context, h int, uri string, pos protocol.Position) ([]protocol.Location, error) {
	a, doc, err := resolve[*definitionAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	locations, err := a.provider.ProvideDefinition(ctx, doc, typeconvert.ToPosition(pos))
	if err != nil {
		return nil, err
	}
	return typeconvert.FromLocations(locations), nil
}

type typeDefinitionAdapter struct{ provider TypeDefinitionProvider }

func (*typeDefinitionAdapter) dispose() {}

func (l *Languages) provideTypeDefinition(ctx context.Context, h int, uri string, pos protocol.Position) ([]protocol.Location, error) {
	a, doc, err := resolve[*typeDefinitionAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	locations, err := a.provider.ProvideTypeDefinition(ctx, doc, typeconvert.ToPosition(pos))
	if err != nil {
		return nil, err
	}
	return typeconvert.FromLocations(locations), nil
}

type referenceAdapter struct{ provider ReferenceProvider }

func (*referenceAdapter) dispose() {}

func (l *Languages) provideReferences(ctx context.Context, h int, uri string, pos protocol.Position, rc protocol.ReferenceContext) ([]protocol.Location, error) {
	a, doc, err := resolve[*referenceAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	locations, err := a.provider.ProvideReferences(ctx, doc, typeconvert.ToPosition(pos), types.ReferenceContext{IncludeDeclaration: rc.IncludeDeclaration})
	if err != nil {
		return nil, err
	}
	return typeconvert.FromLocations(locations), nil
}

// lensBatch is one code lens result kept for resolve calls.
type lensBatch struct {
	lenses    []*types.CodeLens
	delegates []string
}

type codeLensAdapter struct {
	provider     CodeLensProvider
	resolver     CodeLensResolver
	commands     *Commands
	subscription event.Disposable

	mu     sync.Mutex
	nextID int
	cache  *lru.Cache[int, *lensBatch]
}

func newCodeLensAdapter(p CodeLensProvider, commands *Commands, size int) (*codeLensAdapter, error) {
	a := &codeLensAdapter{provider: p, commands: commands}
	a.resolver, _ = p.(CodeLensResolver)

	cache, err := lru.NewWithEvict(size, func(_ int, b *lensBatch) {
		commands.releaseDelegates(b.delegates)
	})
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a, nil
}

func (a *codeLensAdapter) dispose() {
	if a.subscription != nil {
		a.subscription.Dispose()
	}
	a.cache.Purge()
}

func (l *Languages) provideCodeLenses(ctx context.Context, h int, uri string) (*protocol.CodeLensList, error) {
	a, doc, err := resolve[*codeLensAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	lenses, err := a.provider.ProvideCodeLenses(ctx, doc)
	if err != nil || lenses == nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	b := &lensBatch{lenses: lenses}
	list := &protocol.CodeLensList{Lenses: make([]protocol.CodeLens, 0, len(lenses)), CacheID: id}
	for i, lens := range lenses {
		if lens == nil {
			continue
		}
		list.Lenses = append(list.Lenses, protocol.CodeLens{
			Range:   typeconvert.FromRange(lens.Range),
			Command: a.commands.toProtocol(lens.Command, &b.delegates),
			CacheID: &protocol.CacheID{ParentID: id, ItemID: i},
		})
	}
	a.cache.Add(id, b)
	return list, nil
}

// resolveCodeLens returns nil when the lens batch is gone. A lens that stays
// without command gets a placeholder.
func (l *Languages) resolveCodeLens(ctx context.Context, h int, _ string, lens protocol.CodeLens) (*protocol.CodeLens, error) {
	a, err := adapterFor[*codeLensAdapter](l, h)
	if err != nil {
		return nil, err
	}
	if lens.CacheID == nil {
		return nil, nil
	}
	id := *lens.CacheID

	a.mu.Lock()
	b, ok := a.cache.Get(id.ParentID)
	if !ok || id.ItemID < 0 || id.ItemID >= len(b.lenses) || b.lenses[id.ItemID] == nil {
		a.mu.Unlock()
		return nil, nil
	}
	item := b.lenses[id.ItemID]
	a.mu.Unlock()

	if a.resolver != nil && !item.IsResolved() {
		resolved, err := a.resolver.ResolveCodeLens(ctx, item)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			item = resolved
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	b.lenses[id.ItemID] = item
	out := &protocol.CodeLens{
		Range:   typeconvert.FromRange(item.Range),
		Command: a.commands.toProtocol(item.Command, &b.delegates),
		CacheID: &id,
	}
	if out.Command == nil {
		cmd := missingCommand
		out.Command = &cmd
	}
	return out, nil
}

func (l *Languages) releaseCodeLenses(_ context.Context, h, id int) error {
	a, err := adapterFor[*codeLensAdapter](l, h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cache.Remove(id)
	a.mu.Unlock()
	return nil
}

type foldingAdapter struct{ provider FoldingRangeProvider }

func (*foldingAdapter) dispose() {}

// provideFoldingRanges drops ranges that end before they start.
func (l *Languages) provideFoldingRanges(ctx context.Context, h int, uri string, _ protocol.FoldingContext) ([]protocol.FoldingRange, error) {
	a, doc, err := resolve[*foldingAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	ranges, err := a.provider.ProvideFoldingRanges(ctx, doc, types.FoldingContext{})
	if err != nil {
		return nil, err
	}
	out := make([]protocol.FoldingRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 || r.End < r.Start {
			continue
		}
		out = append(out, typeconvert.FromFoldingRange(r))
	}
	return out, nil
}

type highlightAdapter struct{ provider DocumentHighlightProvider }

func (*highlightAdapter) dispose() {}

func (l *Languages) provideDocumentHighlights(ctx context.Context, h int, uri string, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	a, doc, err := resolve[*highlightAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	highlights, err := a.provider.ProvideDocumentHighlights(ctx, doc, typeconvert.ToPosition(pos))
	if err != nil {
		return nil, err
	}
	out := make([]protocol.DocumentHighlight, len(highlights))
	for i, hl := range highlights {
		out[i] = typeconvert.FromDocumentHighlight(hl)
	}
	return out, nil
}

type colorAdapter struct{ provider DocumentColorProvider }

func (*colorAdapter) dispose() {}

func (l *Languages) provideDocumentColors(ctx context.Context, h int, uri string) ([]protocol.ColorInformation, error) {
	a, doc, err := resolve[*colorAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	colors, err := a.provider.ProvideDocumentColors(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.ColorInformation, len(colors))
	for i, c := range colors {
		out[i] = typeconvert.FromColorInformation(c)
	}
	return out, nil
}

func (l *Languages) provideColorPresentations(ctx context.Context, h int, uri string, info protocol.ColorInformation) ([]protocol.ColorPresentation, error) {
	a, doc, err := resolve[*colorAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	ci := typeconvert.ToColorInformation(info)
	presentations, err := a.provider.ProvideColorPresentations(ctx, doc, ci.Color, ci.Range)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.ColorPresentation, len(presentations))
	for i, p := range presentations {
		out[i] = typeconvert.FromColorPresentation(p)
	}
	return out, nil
}

type linkAdapter struct {
	provider DocumentLinkProvider
	resolver DocumentLinkResolver

	mu     sync.Mutex
	nextID int
	cache  *lru.Cache[int, []*types.DocumentLink]
}

func newLinkAdapter(p DocumentLinkProvider, size int) (*linkAdapter, error) {
	a := &linkAdapter{provider: p}
	a.resolver, _ = p.(DocumentLinkResolver)

	cache, err := lru.New[int, []*types.DocumentLink](size)
	if err != nil {
		return nil, err
	}
	a.cache = cache
	return a, nil
}

func (a *linkAdapter) dispose() { a.cache.Purge() }

// provideDocumentLinks only keeps links for resolving providers.
func (l *Languages) provideDocumentLinks(ctx context.Context, h int, uri string) (*protocol.LinksList, error) {
	a, doc, err := resolve[*linkAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	links, err := a.provider.ProvideDocumentLinks(ctx, doc)
	if err != nil || links == nil {
		return nil, err
	}

	list := &protocol.LinksList{Links: make([]protocol.Link, 0, len(links))}
	if a.resolver != nil {
		a.mu.Lock()
		a.nextID++
		list.CacheID = a.nextID
		a.cache.Add(list.CacheID, links)
		a.mu.Unlock()
	}
	for i, link := range links {
		if link == nil {
			continue
		}
		out := typeconvert.FromDocumentLink(*link)
		if a.resolver != nil {
			out.CacheID = &protocol.CacheID{ParentID: list.CacheID, ItemID: i}
		}
		list.Links = append(list.Links, out)
	}
	return list, nil
}

func (l *Languages) resolveDocumentLink(ctx context.Context, h int, id protocol.CacheID) (*protocol.Link, error) {
	a, err := adapterFor[*linkAdapter](l, h)
	if err != nil {
		return nil, err
	}
	if a.resolver == nil {
		return nil, nil
	}

	a.mu.Lock()
	links, ok := a.cache.Get(id.ParentID)
	a.mu.Unlock()
	if !ok || id.ItemID < 0 || id.ItemID >= len(links) || links[id.ItemID] == nil {
		return nil, nil
	}

	resolved, err := a.resolver.ResolveDocumentLink(ctx, links[id.ItemID])
	if err != nil || resolved == nil {
		return nil, err
	}
	out := typeconvert.FromDocumentLink(*resolved)
	out.CacheID = &id
	return &out, nil
}

func (l *Languages) releaseDocumentLinks(_ context.Context, h, id int) error {
	a, err := adapterFor[*linkAdapter](l, h)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cache.Remove(id)
	a.mu.Unlock()
	return nil
}

type onTypeFormattingAdapter struct{ provider OnTypeFormattingEditProvider }

func (*onTypeFormattingAdapter) dispose() {}

func (l *Languages) provideOnTypeFormattingEdits(ctx context.Context, h int, uri string, pos protocol.Position, ch string, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	a, doc, err := resolve[*onTypeFormattingAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	edits, err := a.provider.ProvideOnTypeFormattingEdits(ctx, doc, typeconvert.ToPosition(pos), ch, typeconvert.ToFormattingOptions(options))
	if err != nil {
		return nil, err
	}
	return typeconvert.FromTextEdits(edits), nil
}

type rangeFormattingAdapter struct {
	provider DocumentRangeFormattingEditProvider
}

func (*rangeFormattingAdapter) dispose() {}

func (l *Languages) provideDocumentRangeFormattingEdits(ctx context.Context, h int, uri string, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	a, doc, err := resolve[*rangeFormattingAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	edits, err := a.provider.ProvideDocumentRangeFormattingEdits(ctx, doc, typeconvert.ToRange(rng), typeconvert.ToFormattingOptions(options))
	if err != nil {
		return nil, err
	}
	return typeconvert.FromTextEdits(edits), nil
}

type formattingAdapter struct {
	provider DocumentFormattingEditProvider
}

func (*formattingAdapter) dispose() {}

func (l *Languages) provideDocumentFormattingEdits(ctx context.Context, h int, uri string, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	a, doc, err := resolve[*formattingAdapter](l, h, uri)
	if err != nil {
		return nil, err
	}
	edits, err := a.provider.ProvideDocumentFormattingEdits(ctx, doc, typeconvert.ToFormattingOptions(options))
	if err != nil {
		return nil, err
	}
	return typeconvert.FromTextEdits(edits), nil
}
