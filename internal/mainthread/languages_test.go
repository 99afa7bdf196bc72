package mainthread

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
)

// hoverByHandle answers every hover request with the handle it was sent to.
func hoverByHandle(_ context.Context, args []json.RawMessage) (any, error) {
	handle, err := rpc.Arg[int](args, 0)
	if err != nil {
		return nil, err
	}
	return protocol.Hover{Contents: []protocol.MarkdownString{{Value: strconv.Itoa(handle)}}}, nil
}

func hoverValues(hovers []protocol.Hover) []string {
	out := make([]string, len(hovers))
	for i, h := range hovers {
		out[i] = h.Contents[0].Value
	}
	return out
}

func TestLanguageFeatures_HooksLanguagesKnownLater(t *testing.T) {
	s, ext := newTestSession(t, Options{Languages: []string{"php"}}, nil)
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)

	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 1, selector.Language("php")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 2, selector.Language("twig")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 3, selector.Of(selector.Filter{Scheme: "file"})))

	assert.Equal(t, []int{1, 3}, s.Languages.Providers("php", FeatureHover))
	assert.Empty(t, s.Languages.Providers("twig", FeatureHover))

	s.Models.Add("file:///templates/base.html.twig", "", "{% block body %}{% endblock %}")
	assert.Equal(t, []int{2, 3}, s.Languages.Providers("twig", FeatureHover))
	assert.Contains(t, s.Languages.Languages(), "twig")

	err := lf.Register(ctx, "$registerHoverProvider", 1, selector.Language("php"))
	assert.ErrorIs(t, err, rpc.ErrInvalidArguments)
}

func TestLanguageFeatures_ProvidersOrderedByScoreThenRecency(t *testing.T) {
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideHover": hoverByHandle,
	})
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)

	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 1, selector.Language("*")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 2, selector.Language("php")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 3, selector.Language("php")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 4, selector.Of(selector.Filter{Language: "php", Pattern: "**/*.txt"})))

	s.Models.Add("file:///src/a.php", "", "<?php")
	hovers, err := s.Languages.ProvideHover(ctx, "file:///src/a.php", protocol.Position{LineNumber: 1, Column: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, hoverValues(hovers))

	_, err = s.Languages.ProvideHover(ctx, "file:///missing.php", protocol.Position{LineNumber: 1, Column: 1})
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestLanguageFeatures_FailingProviderIsSkipped(t *testing.T) {
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideHover": func(ctx context.Context, args []json.RawMessage) (any, error) {
			if handle, _ := rpc.Arg[int](args, 0); handle == 1 {
				return nil, &rpc.Error{Code: rpc.CodeUnknownHandle, Message: "no adapter found"}
			}
			return hoverByHandle(ctx, args)
		},
	})
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 1, selector.Language("json")))
	require.NoError(t, lf.Register(ctx, "$registerHoverProvider", 2, selector.Language("json")))

	s.Models.Add("file:///composer.json", "", "{}")
	hovers, err := s.Languages.ProvideHover(ctx, "file:///composer.json", protocol.Position{LineNumber: 1, Column: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, hoverValues(hovers))
}

func TestLanguageFeatures_Unregister(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)

	err := lf.Unregister(ctx, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrUnknownHandle)

	require.NoError(t, lf.Register(ctx, "$registerDefinitionSupport", 5, selector.Language(PlainText)))
	assert.Equal(t, []int{5}, s.Languages.Providers(PlainText, FeatureDefinition))
	require.NoError(t, lf.Unregister(ctx, 5))
	assert.Empty(t, s.Languages.Providers(PlainText, FeatureDefinition))
}

func TestLanguageFeatures_CompletionResolveAndRelease(t *testing.T) {
	released := make(chan [2]int, 1)
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideCompletionItems": func(context.Context, []json.RawMessage) (any, error) {
			return protocol.SuggestResult{
				CacheID: 1,
				Suggestions: []protocol.Suggestion{
					{Label: "first", InsertText: "first", CacheID: &protocol.CacheID{ParentID: 1, ItemID: 0}},
					{Label: "gone", InsertText: "gone", CacheID: &protocol.CacheID{ParentID: 1, ItemID: 1}},
				},
			}, nil
		},
		"ExtHostLanguageFeatures.$resolveCompletionItem": func(_ context.Context, args []json.RawMessage) (any, error) {
			id, err := rpc.Arg[protocol.CacheID](args, 3)
			if err != nil {
				return nil, err
			}
			if id.ItemID != 0 {
				return nil, nil
			}
			return protocol.Suggestion{Label: "first", InsertText: "first", Detail: "resolved"}, nil
		},
		"ExtHostLanguageFeatures.$releaseCompletionItems": func(_ context.Context, args []json.RawMessage) (any, error) {
			handle, _ := rpc.Arg[int](args, 0)
			cacheID, _ := rpc.Arg[int](args, 1)
			released <- [2]int{handle, cacheID}
			return nil, nil
		},
	})
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)
	require.NoError(t, lf.RegisterCompletionSupport(ctx, 1, selector.Language("php"), []string{"$"}, true))
	require.NoError(t, lf.RegisterCompletionSupport(ctx, 2, selector.Language("php"), nil, false))

	s.Models.Add("file:///a.php", "", "<?php $")
	pos := protocol.Position{LineNumber: 1, Column: 8}

	results, err := s.Languages.ProvideCompletionItems(ctx, "file:///a.php", pos,
		protocol.CompletionContext{TriggerKind: protocol.TriggerCharacter, TriggerCharacter: "$"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Handle)
	assert.True(t, results[0].SupportsResolve)

	first, err := s.Languages.ResolveCompletionItem(ctx, 1, "file:///a.php", pos, results[0].Suggestions[0])
	require.NoError(t, err)
	assert.Equal(t, "resolved", first.Detail)

	gone := results[0].Suggestions[1]
	kept, err := s.Languages.ResolveCompletionItem(ctx, 1, "file:///a.php", pos, gone)
	require.NoError(t, err)
	assert.Equal(t, gone, kept)

	_, err = s.Languages.ResolveCompletionItem(ctx, 42, "file:///a.php", pos, gone)
	assert.ErrorIs(t, err, rpc.ErrUnknownHandle)

	require.NoError(t, s.Languages.ReleaseCompletionItems(ctx, results[0]))
	select {
	case got := <-released:
		assert.Equal(t, [2]int{1, 1}, got)
	case <-time.After(time.Second):
		t.Fatal("release not sent")
	}

	// Nothing cached, nothing to release.
	require.NoError(t, s.Languages.ReleaseCompletionItems(ctx, CompletionResult{Handle: 2}))

	all, err := s.Languages.ProvideCompletionItems(ctx, "file:///a.php", pos, protocol.CompletionContext{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLanguageFeatures_HighlightsFromFirstNonEmptyProvider(t *testing.T) {
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideDocumentHighlights": func(_ context.Context, args []json.RawMessage) (any, error) {
			if handle, _ := rpc.Arg[int](args, 0); handle == 2 {
				return []protocol.DocumentHighlight{}, nil
			}
			return []protocol.DocumentHighlight{{Range: rng(1, 1, 1, 2), Kind: protocol.HighlightWrite}}, nil
		},
	})
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)
	require.NoError(t, lf.Register(ctx, "$registerDocumentHighlightProvider", 1, selector.Language("yaml")))
	require.NoError(t, lf.Register(ctx, "$registerDocumentHighlightProvider", 2, selector.Language("yaml")))

	s.Models.Add("file:///services.yaml", "", "a: b")
	highlights, err := s.Languages.ProvideDocumentHighlights(ctx, "file:///services.yaml", protocol.Position{LineNumber: 1, Column: 1})
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, protocol.HighlightWrite, highlights[0].Kind)
}

func TestLanguageFeatures_FormattingFallsBackToRange(t *testing.T) {
	var gotRange protocol.Range
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideDocumentRangeFormattingEdits": func(_ context.Context, args []json.RawMessage) (any, error) {
			gotRange, _ = rpc.Arg[protocol.Range](args, 2)
			return []protocol.TextEdit{{Range: gotRange, Text: "formatted"}}, nil
		},
	})
	ctx := context.Background()
	require.NoError(t, protocol.NewLanguageFeaturesProxy(ext.proto).Register(ctx,
		"$registerRangeFormattingSupport", 1, selector.Language("xml")))

	s.Models.Add("file:///services.xml", "", "<a>\n  <b/>\n</a>")
	edits, err := s.Languages.ProvideDocumentFormattingEdits(ctx, "file:///services.xml", protocol.FormattingOptions{TabSize: 2})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, rng(1, 1, 3, 5), gotRange)
}

func TestLanguageFeatures_FoldingRangesMergedAndSorted(t *testing.T) {
	s, ext := newTestSession(t, Options{}, map[string]rpc.Handler{
		"ExtHostLanguageFeatures.$provideFoldingRanges": func(_ context.Context, args []json.RawMessage) (any, error) {
			if handle, _ := rpc.Arg[int](args, 0); handle == 1 {
				return []protocol.FoldingRange{{Start: 5, End: 8}}, nil
			}
			return []protocol.FoldingRange{{Start: 1, End: 3, Kind: protocol.FoldingComment}}, nil
		},
	})
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)
	require.NoError(t, lf.Register(ctx, "$registerFoldingRangeProvider", 1, selector.Language("javascript")))
	require.NoError(t, lf.Register(ctx, "$registerFoldingRangeProvider", 2, selector.Language("javascript")))

	s.Models.Add("file:///main.js", "", "")
	ranges, err := s.Languages.ProvideFoldingRanges(ctx, "file:///main.js")
	require.NoError(t, err)
	assert.Equal(t, []protocol.FoldingRange{{Start: 1, End: 3, Kind: protocol.FoldingComment}, {Start: 5, End: 8}}, ranges)
}

func TestLanguageFeatures_CodeLensEvents(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)
	ctx := context.Background()
	lf := protocol.NewLanguageFeaturesProxy(ext.proto)

	events := make(chan int, 1)
	s.Languages.OnDidChangeCodeLenses(func(h int) { events <- h })

	eventHandle := 11
	require.NoError(t, lf.RegisterCodeLensSupport(ctx, 10, selector.Language("php"), &eventHandle))
	require.NoError(t, lf.EmitCodeLensEvent(ctx, eventHandle))

	select {
	case got := <-events:
		assert.Equal(t, 11, got)
	case <-time.After(time.Second):
		t.Fatal("code lens event not delivered")
	}

	// Resolved lenses are not sent again.
	lens := protocol.CodeLens{Range: rng(1, 1, 1, 1), Command: &protocol.Command{ID: "x", Title: "x"}}
	got, err := s.Languages.ResolveCodeLens(ctx, 10, "file:///a.php", lens)
	require.NoError(t, err)
	assert.Equal(t, lens, got)
}
