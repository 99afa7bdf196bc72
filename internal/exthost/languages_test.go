package exthost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
)

var php = selector.Language("php")

func pos(line, column int) protocol.Position {
	return protocol.Position{LineNumber: line, Column: column}
}

func TestLanguages_HoverDefaultsToWordRange(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	d, err := s.Languages.RegisterHoverProvider(ctx, php, HoverProviderFunc(func(_ context.Context, doc *Document, p types.Position) (*types.Hover, error) {
		if p.Line == 0 {
			return nil, nil
		}
		return &types.Hover{Contents: []types.MarkedString{types.Text("a variable")}}, nil
	}))
	require.NoError(t, err)

	args := f.lastArgs("MainThreadLanguageFeatures.$registerHoverProvider")
	h := arg[int](t, args, 0)
	assert.Equal(t, php, arg[selector.Selector](t, args, 1))

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	hover, err := ext.ProvideHover(ctx, h, testURI, pos(2, 8))
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Equal(t, "a variable", hover.Contents[0].Value)
	require.NotNil(t, hover.Range)
	assert.Equal(t, protocol.Range{StartLineNumber: 2, StartColumn: 7, EndLineNumber: 2, EndColumn: 10}, *hover.Range)

	none, err := ext.ProvideHover(ctx, h, testURI, pos(1, 1))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ext.ProvideHover(ctx, h, "file:///missing.php", pos(1, 1))
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	d.Dispose()
	assert.Equal(t, h, arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$unregister"), 0))
	_, err = ext.ProvideHover(ctx, h, testURI, pos(2, 8))
	require.ErrorIs(t, err, rpc.ErrUnknownHandle)
	assert.Contains(t, err.Error(), "no adapter found")
}

func TestLanguages_HandleOfOtherFeature(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	_, err := s.Languages.RegisterDefinitionProvider(ctx, php, DefinitionProviderFunc(func(context.Context, *Document, types.Position) ([]types.Location, error) {
		return []types.Location{{URI: "file:///b.php", Range: types.NewRangeOf(0, 0, 0, 3)}}, nil
	}))
	require.NoError(t, err)
	h := arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$registerDefinitionSupport"), 0)

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	locations, err := ext.ProvideDefinition(ctx, h, testURI, pos(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []protocol.Location{{URI: "file:///b.php", Range: protocol.Range{StartLineNumber: 1, StartColumn: 1, EndLineNumber: 1, EndColumn: 4}}}, locations)

	_, err = ext.ProvideHover(ctx, h, testURI, pos(1, 1))
	assert.ErrorIs(t, err, rpc.ErrUnknownHandle)
	_, err = ext.ProvideHover(ctx, 4242, testURI, pos(1, 1))
	assert.ErrorIs(t, err, rpc.ErrUnknownHandle)
}

func TestLanguages_RegisterFailureReleasesHandle(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	f.handle("MainThreadLanguageFeatures.$registerHoverProvider", func(context.Context, []json.RawMessage) (any, error) {
		return nil, errors.New("rejected")
	})

	_, err := s.Languages.RegisterHoverProvider(context.Background(), php, HoverProviderFunc(func(context.Context, *Document, types.Position) (*types.Hover, error) {
		return nil, nil
	}))
	require.Error(t, err)
	assert.Zero(t, s.Languages.adapters.Len())
}

type completions struct {
	mu       sync.Mutex
	resolved []string
}

func (c *completions) ProvideCompletionItems(_ context.Context, _ *Document, _ types.Position, cc types.CompletionContext) (*types.CompletionList, error) {
	return &types.CompletionList{
		IsIncomplete: cc.TriggerKind == types.TriggerCharacter,
		Items: []*types.CompletionItem{
			{Label: "$foo", Kind: types.CompletionVariable},
			{Label: ""},
			{Label: "echo", Kind: types.CompletionKeyword, Command: &types.Command{Command: "later", Arguments: []any{func() {}}}},
		},
	}, nil
}

func (c *completions) ResolveCompletionItem(_ context.Context, item *types.CompletionItem) (*types.CompletionItem, error) {
	c.mu.Lock()
	c.resolved = append(c.resolved, item.Label)
	c.mu.Unlock()
	resolved := *item
	resolved.Detail = "resolved " + item.Label
	resolved.Documentation = types.MarkdownString{Value: "**doc**"}
	return &resolved, nil
}

func TestLanguages_CompletionProvideResolveRelease(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	provider := &completions{}
	_, err := s.Languages.RegisterCompletionItemProvider(ctx, php, provider, "$", ">")
	require.NoError(t, err)
	args := f.lastArgs("MainThreadLanguageFeatures.$registerCompletionSupport")
	h := arg[int](t, args, 0)
	assert.Equal(t, []string{"$", ">"}, arg[[]string](t, args, 2))
	assert.True(t, arg[bool](t, args, 3))

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	result, err := ext.ProvideCompletionItems(ctx, h, testURI, pos(2, 6), protocol.CompletionContext{TriggerKind: protocol.TriggerCharacter, TriggerCharacter: "$"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.CacheID)
	assert.True(t, result.Incomplete)

	// The item without label is dropped.
	require.Len(t, result.Suggestions, 2)
	foo, echo := result.Suggestions[0], result.Suggestions[1]
	assert.Equal(t, protocol.KindVariable, foo.Kind)
	assert.Equal(t, "$foo", foo.InsertText)
	assert.Equal(t, &protocol.CacheID{ParentID: 1, ItemID: 0}, foo.CacheID)
	assert.Equal(t, &protocol.CacheID{ParentID: 1, ItemID: 2}, echo.CacheID)
	require.NotNil(t, echo.Command)
	assert.Equal(t, DelegateCommand, echo.Command.ID)
	assert.Equal(t, 1, s.Commands.delegateCount())

	resolved, err := ext.ResolveCompletionItem(ctx, h, testURI, pos(2, 6), *foo.CacheID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "resolved $foo", resolved.Detail)
	require.NotNil(t, resolved.Documentation)
	assert.Equal(t, "**doc**", resolved.Documentation.Value)
	assert.Equal(t, foo.CacheID, resolved.CacheID)

	missing, err := ext.ResolveCompletionItem(ctx, h, testURI, pos(2, 6), protocol.CacheID{ParentID: 1, ItemID: 9})
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, ext.ReleaseCompletionItems(ctx, h, result.CacheID))
	eventually(t, func() bool { return s.Commands.delegateCount() == 0 })
	gone, err := ext.ResolveCompletionItem(ctx, h, testURI, pos(2, 6), *foo.CacheID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	provider.mu.Lock()
	assert.Equal(t, []string{"$foo"}, provider.resolved)
	provider.mu.Unlock()
}

func TestLanguages_CompletionCacheIsBounded(t *testing.T) {
	s, f := newTestSession(t, Options{CompletionCacheSize: 2})
	startSession(t, s, f)
	ctx := context.Background()

	_, err := s.Languages.RegisterCompletionItemProvider(ctx, php, &completions{})
	require.NoError(t, err)
	h := arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$registerCompletionSupport"), 0)
	a, err := adapterFor[*completionAdapter](s.Languages, h)
	require.NoError(t, err)

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	var ids []int
	for i := 0; i < 3; i++ {
		result, err := ext.ProvideCompletionItems(ctx, h, testURI, pos(1, 1), protocol.CompletionContext{})
		require.NoError(t, err)
		ids = append(ids, result.CacheID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
	assert.Equal(t, 2, a.cached())
	// Evicted batches release their delegated commands too.
	assert.Equal(t, 2, s.Commands.delegateCount())

	evicted, err := ext.ResolveCompletionItem(ctx, h, testURI, pos(1, 1), protocol.CacheID{ParentID: 1, ItemID: 0})
	require.NoError(t, err)
	assert.Nil(t, evicted)
	kept, err := ext.ResolveCompletionItem(ctx, h, testURI, pos(1, 1), protocol.CacheID{ParentID: 3, ItemID: 0})
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

type lenses struct {
	changed event.Emitter[struct{}]
}

func (l *lenses) ProvideCodeLenses(context.Context, *Document) ([]*types.CodeLens, error) {
	return []*types.CodeLens{
		{Range: types.NewRangeOf(0, 0, 0, 5), Command: &types.Command{Command: "run", Title: "Run"}},
		{Range: types.NewRangeOf(1, 0, 1, 4)},
		{Range: types.NewRangeOf(2, 0, 2, 0)},
	}, nil
}

func (l *lenses) ResolveCodeLens(_ context.Context, lens *types.CodeLens) (*types.CodeLens, error) {
	if lens.Range.Start.Line == 2 {
		return nil, nil
	}
	resolved := *lens
	resolved.Command = &types.Command{Command: "refs", Title: "3 references"}
	return &resolved, nil
}

func (l *lenses) OnDidChangeCodeLenses(fn func()) event.Disposable {
	return l.changed.Subscribe(func(struct{}) { fn() })
}

func TestLanguages_CodeLenses(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	provider := &lenses{}
	d, err := s.Languages.RegisterCodeLensProvider(ctx, php, provider)
	require.NoError(t, err)
	args := f.lastArgs("MainThreadLanguageFeatures.$registerCodeLensSupport")
	h := arg[int](t, args, 0)
	eventHandle := arg[*int](t, args, 2)
	require.NotNil(t, eventHandle)

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	list, err := ext.ProvideCodeLenses(ctx, h, testURI)
	require.NoError(t, err)
	require.Len(t, list.Lenses, 3)
	assert.Equal(t, "run", list.Lenses[0].Command.ID)
	assert.Nil(t, list.Lenses[1].Command)

	resolved, err := ext.ResolveCodeLens(ctx, h, testURI, list.Lenses[1])
	require.NoError(t, err)
	require.NotNil(t, resolved.Command)
	assert.Equal(t, "3 references", resolved.Command.Title)

	unresolved, err := ext.ResolveCodeLens(ctx, h, testURI, list.Lenses[2])
	require.NoError(t, err)
	assert.Equal(t, "missing", unresolved.Command.ID)

	provider.changed.Fire(struct{}{})
	eventually(t, func() bool { return f.calledTimes("MainThreadLanguageFeatures.$emitCodeLensEvent") == 1 })
	assert.Equal(t, *eventHandle, arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$emitCodeLensEvent"), 0))

	require.NoError(t, ext.ReleaseCodeLenses(ctx, h, list.CacheID))
	eventually(t, func() bool {
		gone, err := ext.ResolveCodeLens(ctx, h, testURI, list.Lenses[1])
		return err == nil && gone == nil
	})

	d.Dispose()
	assert.Zero(t, provider.changed.Len())
}

type links struct{}

func (links) ProvideDocumentLinks(context.Context, *Document) ([]*types.DocumentLink, error) {
	return []*types.DocumentLink{{Range: types.NewRangeOf(0, 0, 0, 5)}}, nil
}

func (links) ResolveDocumentLink(_ context.Context, l *types.DocumentLink) (*types.DocumentLink, error) {
	resolved := *l
	resolved.Target = "https://example.com/doc"
	return &resolved, nil
}

func TestLanguages_DocumentLinks(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	_, err := s.Languages.RegisterDocumentLinkProvider(ctx, php, links{})
	require.NoError(t, err)
	args := f.lastArgs("MainThreadLanguageFeatures.$registerDocumentLinkProvider")
	h := arg[int](t, args, 0)
	assert.True(t, arg[bool](t, args, 2))

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	list, err := ext.ProvideDocumentLinks(ctx, h, testURI)
	require.NoError(t, err)
	require.Len(t, list.Links, 1)
	assert.Empty(t, list.Links[0].URL)
	require.NotNil(t, list.Links[0].CacheID)

	link, err := ext.ResolveDocumentLink(ctx, h, *list.Links[0].CacheID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/doc", link.URL)

	require.NoError(t, ext.ReleaseDocumentLinks(ctx, h, list.CacheID))
	eventually(t, func() bool {
		gone, err := ext.ResolveDocumentLink(ctx, h, *list.Links[0].CacheID)
		return err == nil && gone == nil
	})
}

func TestLanguages_FoldingAndFormatting(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	_, err := s.Languages.RegisterFoldingRangeProvider(ctx, php, FoldingRangeProviderFunc(func(context.Context, *Document, types.FoldingContext) ([]types.FoldingRange, error) {
		return []types.FoldingRange{
			{Start: 0, End: 2, Kind: types.FoldingRegion},
			{Start: 2, End: 1},
			{Start: -1, End: 1},
		}, nil
	}))
	require.NoError(t, err)
	folding := arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$registerFoldingRangeProvider"), 0)

	_, err = s.Languages.RegisterDocumentFormattingEditProvider(ctx, php, DocumentFormattingEditProviderFunc(func(_ context.Context, doc *Document, opts types.FormattingOptions) ([]types.TextEdit, error) {
		if !opts.InsertSpaces {
			return nil, fmt.Errorf("tabs are not supported")
		}
		return []types.TextEdit{types.Replace(types.NewRangeOf(1, 0, 1, 4), "print")}, nil
	}))
	require.NoError(t, err)
	formatting := arg[int](t, f.lastArgs("MainThreadLanguageFeatures.$registerDocumentFormattingSupport"), 0)

	ext := protocol.NewExtLanguageFeaturesProxy(f.proto)
	ranges, err := ext.ProvideFoldingRanges(ctx, folding, testURI, protocol.FoldingContext{})
	require.NoError(t, err)
	assert.Equal(t, []protocol.FoldingRange{{Start: 1, End: 3, Kind: protocol.FoldingRegion}}, ranges)

	edits, err := ext.ProvideDocumentFormattingEdits(ctx, formatting, testURI, protocol.FormattingOptions{TabSize: 4, InsertSpaces: true})
	require.NoError(t, err)
	assert.Equal(t, []protocol.TextEdit{{
		Range: protocol.Range{StartLineNumber: 2, StartColumn: 1, EndLineNumber: 2, EndColumn: 5},
		Text:  "print",
	}}, edits)

	_, err = ext.ProvideDocumentFormattingEdits(ctx, formatting, testURI, protocol.FormattingOptions{TabSize: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tabs are not supported")
}

func TestLanguages_OnTypeFormattingNeedsTriggers(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	_, err := s.Languages.RegisterOnTypeFormattingEditProvider(context.Background(), php, nil)
	assert.ErrorIs(t, err, rpc.ErrInvalidArguments)
	assert.Zero(t, f.calledTimes("MainThreadLanguageFeatures.$registerOnTypeFormattingSupport"))
}

func TestMatch(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	doc, _ := s.Documents.Get(testURI)

	assert.Equal(t, 10, Match(php, doc))
	assert.Equal(t, 5, Match(selector.Language("*"), doc))
	assert.Zero(t, Match(selector.Language("twig"), doc))
	assert.Equal(t, 10, Match(selector.Of(selector.Filter{Pattern: "**/src/*.php"}), doc))
}
