package snippets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/bridge"
	"github.com/shopware/exthost/internal/mainthread"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/syntax"
	"github.com/shopware/exthost/internal/watcher"
)

const (
	enURI   = "file:///shop/Resources/snippet/en_GB/storefront.en-GB.json"
	deURI   = "file:///shop/Resources/snippet/de_DE/storefront.de-DE.json"
	twigURI = "file:///shop/Resources/views/page.html.twig"
)

const enSnippets = `{
  "account": {
    "title": "Your account",
    "orders": {
      "count": 3
    }
  },
  "footer": "Footer"
}
`

func parse(t *testing.T, src, uri string) map[string]Snippet {
	t.Helper()
	tree, err := syntax.NewRegistry().Parse("json", []byte(src))
	require.NoError(t, err)
	defer tree.Close()
	return Parse(tree.RootNode(), []byte(src), uri)
}

func TestParse(t *testing.T) {
	assert.Equal(t, map[string]Snippet{
		"account.title":        {Key: "account.title", Text: "Your account", URI: enURI, Line: 2},
		"account.orders.count": {Key: "account.orders.count", Text: "3", URI: enURI, Line: 4},
		"footer":               {Key: "footer", Text: "Footer", URI: enURI, Line: 7},
	}, parse(t, enSnippets, enURI))
}

func TestIndex_PrefersDefaultLocale(t *testing.T) {
	idx := NewIndex()
	idx.Update(deURI, parse(t, `{"account": {"title": "Ihr Konto", "logout": "Abmelden"}}`, deURI))
	idx.Update(enURI, parse(t, enSnippets, enURI))

	assert.Equal(t, []string{enURI, deURI}, idx.Files())

	s, ok := idx.Lookup("account.title")
	require.True(t, ok)
	assert.Equal(t, "Your account", s.Text)

	s, ok = idx.Lookup("account.logout")
	require.True(t, ok)
	assert.Equal(t, deURI, s.URI)

	assert.Equal(t, []string{"account.logout", "account.orders.count", "account.title"}, idx.Keys("account."))

	idx.Remove(deURI)
	_, ok = idx.Lookup("account.logout")
	assert.False(t, ok)
}

func newPair(t *testing.T, main mainthread.Options) (*bridge.Pair, *Extension) {
	t.Helper()
	if main.DataDir == "" {
		main.DataDir = t.TempDir()
	}
	p, err := bridge.New(bridge.Options{Main: main})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	p.Main.Models.Add(enURI, "json", enSnippets)
	p.Main.Models.Add(twigURI, "twig", "{{ 'account.title'|trans }}\n{{ 'acc' }}\n")

	ext := New(syntax.NewRegistry(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Start(ctx, ext))
	return p, ext
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestExtension_Completion(t *testing.T) {
	p, _ := newPair(t, mainthread.Options{})
	ctx := testContext(t)

	// Inside 'acc' on the second line.
	pos := protocol.Position{LineNumber: 2, Column: 8}
	results, err := p.Main.Languages.ProvideCompletionItems(ctx, twigURI, pos, protocol.CompletionContext{TriggerKind: protocol.TriggerInvoke})
	require.NoError(t, err)
	require.Len(t, results, 1)

	var labels []string
	for _, s := range results[0].Suggestions {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"account.orders.count", "account.title"}, labels)
	title := results[0].Suggestions[1]
	assert.Equal(t, "Your account", title.Detail)
	require.NotNil(t, title.Range)
	assert.Equal(t, 5, title.Range.StartColumn)
	assert.Equal(t, 8, title.Range.EndColumn)

	resolved, err := p.Main.Languages.ResolveCompletionItem(ctx, results[0].Handle, twigURI, pos, title)
	require.NoError(t, err)
	require.NotNil(t, resolved.Documentation)
	assert.Contains(t, resolved.Documentation.Value, enURI+":3")

	// Outside of a string literal.
	results, err = p.Main.Languages.ProvideCompletionItems(ctx, twigURI, protocol.Position{LineNumber: 1, Column: 2}, protocol.CompletionContext{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExtension_HoverAndDefinition(t *testing.T) {
	p, _ := newPair(t, mainthread.Options{})
	ctx := testContext(t)

	pos := protocol.Position{LineNumber: 1, Column: 10}
	hovers, err := p.Main.Languages.ProvideHover(ctx, twigURI, pos)
	require.NoError(t, err)
	require.Len(t, hovers, 1)
	assert.Equal(t, "Your account", hovers[0].Contents[0].Value)
	require.NotNil(t, hovers[0].Range)
	assert.Equal(t, protocol.Range{StartLineNumber: 1, StartColumn: 5, EndLineNumber: 1, EndColumn: 18}, *hovers[0].Range)

	locations, err := p.Main.Languages.ProvideDefinition(ctx, twigURI, pos)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, enURI, locations[0].URI)
	assert.Equal(t, 3, locations[0].Range.StartLineNumber)

	hovers, err = p.Main.Languages.ProvideHover(ctx, twigURI, protocol.Position{LineNumber: 1, Column: 22})
	require.NoError(t, err)
	assert.Empty(t, hovers)
}

func TestExtension_Commands(t *testing.T) {
	p, _ := newPair(t, mainthread.Options{})
	ctx := testContext(t)

	files, err := p.Main.Commands.ExecuteCommand(ctx, FilesCommand)
	require.NoError(t, err)
	assert.JSONEq(t, `["`+enURI+`"]`, string(files))

	text, err := p.Main.Commands.ExecuteCommand(ctx, LookupCommand, "footer")
	require.NoError(t, err)
	assert.JSONEq(t, `"Footer"`, string(text))

	text, err = p.Main.Commands.ExecuteCommand(ctx, LookupCommand, "missing.key")
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(text))

	_, err = p.Main.Commands.ExecuteCommand(ctx, LookupCommand, "")
	assert.Error(t, err)
}

func TestExtension_TracksEdits(t *testing.T) {
	p, ext := newPair(t, mainthread.Options{})

	_, err := p.Main.Models.ApplyEdits(enURI, []protocol.SingleEditOperation{{
		Range: protocol.Range{StartLineNumber: 8, StartColumn: 14, EndLineNumber: 8, EndColumn: 20},
		Text:  "Bottom",
	}}, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, ok := ext.Index().Lookup("footer")
		return ok && s.Text == "Bottom"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExtension_LoadsWatchedFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Resources", "snippet", "de_DE")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, ext := newPair(t, mainthread.Options{
		Workspace: root,
		Watch:     true,
		Watcher:   watcher.Options{Debounce: 20 * time.Millisecond},
	})

	file := filepath.Join(dir, "storefront.de-DE.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"footer": "Fußzeile"}`), 0o644))

	require.Eventually(t, func() bool {
		_, ok := ext.Index().Lookup("footer")
		files := ext.Index().Files()
		return ok && len(files) == 2 && files[1] == mainthread.FileURI(file)
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(file))
	require.Eventually(t, func() bool {
		return len(ext.Index().Files()) == 1
	}, 10*time.Second, 20*time.Millisecond)
}
