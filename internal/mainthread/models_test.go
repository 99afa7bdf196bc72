package mainthread

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

func rng(sl, sc, el, ec int) protocol.Range {
	return protocol.Range{StartLineNumber: sl, StartColumn: sc, EndLineNumber: el, EndColumn: ec}
}

func TestModels_ApplyEditsPushesOneBatch(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "hello world")
	handshake(t, ext)

	ev, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{
		{Range: rng(1, 1, 1, 6), Text: "goodbye"},
		{Range: rng(1, 7, 1, 12), Text: "moon"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, ev.VersionID)
	require.Len(t, ev.Changes, 2)
	// Applied back to front.
	assert.Equal(t, "moon", ev.Changes[0].Text)
	assert.Equal(t, 5, ev.Changes[0].RangeLength)
	assert.Equal(t, "goodbye", ev.Changes[1].Text)

	doc, ok := s.Models.Get("file:///a.txt")
	require.True(t, ok)
	assert.Equal(t, "goodbye moon", doc.Text)
	assert.True(t, doc.Dirty)
	assert.Equal(t, PlainText, doc.LanguageID)

	require.Eventually(t, func() bool {
		ext.mu.Lock()
		defer ext.mu.Unlock()
		return len(ext.modelChanges) == 1
	}, time.Second, 5*time.Millisecond)
	ext.mu.Lock()
	assert.Equal(t, ev, ext.modelChanges[0])
	ext.mu.Unlock()
}

func TestModels_ApplyEditsRejectsOverlap(t *testing.T) {
	s, _ := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "abcdef")

	_, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{
		{Range: rng(1, 1, 1, 4), Text: "x"},
		{Range: rng(1, 3, 1, 5), Text: "y"},
	}, "")
	require.ErrorIs(t, err, rpc.ErrInvalidArguments)
	assert.Contains(t, err.Error(), "overlapping ranges are not allowed")

	doc, _ := s.Models.Get("file:///a.txt")
	assert.Equal(t, "abcdef", doc.Text)
	assert.Equal(t, 1, doc.Version)
}

func TestModels_TouchingEditsAreNotOverlapping(t *testing.T) {
	s, _ := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "abcdef")

	_, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{
		{Range: rng(1, 1, 1, 4), Text: "X"},
		{Range: rng(1, 4, 1, 7), Text: "Y"},
	}, protocol.EOLCRLF)
	require.NoError(t, err)

	doc, _ := s.Models.Get("file:///a.txt")
	assert.Equal(t, "XY", doc.Text)
	assert.Equal(t, protocol.EOLCRLF, doc.EOL)
}

func TestModels_InsertsAtSamePositionKeepBatchOrder(t *testing.T) {
	s, _ := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "abc")

	_, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{
		{Range: rng(1, 2, 1, 2), Text: "X"},
		{Range: rng(1, 2, 1, 2), Text: "Y"},
	}, "")
	require.NoError(t, err)

	doc, _ := s.Models.Get("file:///a.txt")
	assert.Equal(t, "aXYbc", doc.Text)
}

func TestModels_InsertFollowedByTouchingReplace(t *testing.T) {
	s, _ := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "abcdef")

	_, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{
		{Range: rng(1, 3, 1, 3), Text: "X"},
		{Range: rng(1, 3, 1, 5), Text: "Y"},
	}, "")
	require.NoError(t, err)

	doc, _ := s.Models.Get("file:///a.txt")
	assert.Equal(t, "abXYef", doc.Text)
	assert.Equal(t, 2, doc.Version)
}

func TestModels_NoPushesBeforeInitialState(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "a")
	_, err := s.Models.ApplyEdits("file:///a.txt", []protocol.SingleEditOperation{{Range: rng(1, 1, 1, 1), Text: "b"}}, "")
	require.NoError(t, err)

	initial := handshake(t, ext)
	require.Len(t, initial.AddedDocuments, 1)
	assert.Equal(t, 2, initial.AddedDocuments[0].VersionID)
	assert.Equal(t, []string{"ba"}, initial.AddedDocuments[0].Lines)
	assert.Equal(t, 0, ext.calledTimes("ExtHostDocuments.$acceptModelChanged"))
}

func TestModels_UntitledAreNotSaved(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)

	uri, err := protocol.NewDocumentsProxy(ext.proto).TryCreateDocument(context.Background(),
		protocol.CreateDocumentOptions{Language: "json", Content: "{}"})
	require.NoError(t, err)
	assert.Equal(t, "untitled:Untitled-1", uri)

	doc, ok := s.Models.Get(uri)
	require.True(t, ok)
	assert.True(t, doc.Dirty)
	assert.Equal(t, "json", doc.LanguageID)

	saved, err := protocol.NewDocumentsProxy(ext.proto).TrySaveDocument(context.Background(), uri)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestModels_OpenAndSaveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "composer.json")
	require.NoError(t, os.WriteFile(path, []byte("{\n}\n"), 0o644))
	uri := FileURI(path)

	s, ext := newTestSession(t, Options{}, nil)
	handshake(t, ext)

	opened, err := protocol.NewDocumentsProxy(ext.proto).TryOpenDocument(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, uri, opened)

	doc, ok := s.Models.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "json", doc.LanguageID)
	assert.Equal(t, 1, doc.Version)

	_, err = s.Models.ApplyEdits(uri, []protocol.SingleEditOperation{{Range: rng(1, 2, 1, 2), Text: `"a": 1`}}, "")
	require.NoError(t, err)

	saved, err := s.Models.Save(context.Background(), uri)
	require.NoError(t, err)
	assert.True(t, saved)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\": 1\n}\n", string(content))

	doc, _ = s.Models.Get(uri)
	assert.False(t, doc.Dirty)
	require.Eventually(t, func() bool {
		return ext.calledTimes("ExtHostDocuments.$acceptModelSaved") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestModels_OpenMissingFile(t *testing.T) {
	_, ext := newTestSession(t, Options{}, nil)

	_, err := protocol.NewDocumentsProxy(ext.proto).TryOpenDocument(context.Background(),
		FileURI(filepath.Join(t.TempDir(), "missing.php")))
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestModels_LanguageAndDirtyChanges(t *testing.T) {
	s, ext := newTestSession(t, Options{}, nil)
	s.Models.Add("file:///a.txt", "", "a")
	handshake(t, ext)

	require.NoError(t, s.Models.SetLanguage("file:///a.txt", "twig"))
	require.NoError(t, s.Models.SetLanguage("file:///a.txt", "twig"))
	require.NoError(t, s.Models.SetDirty("file:///a.txt", true))
	require.ErrorIs(t, s.Models.SetDirty("file:///b.txt", true), rpc.ErrNotFound)

	require.Eventually(t, func() bool {
		return ext.calledTimes("ExtHostDocuments.$acceptDirtyStateChanged") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ext.calledTimes("ExtHostDocuments.$acceptModelModeChanged"))
	assert.Contains(t, s.Languages.Languages(), "twig")
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "php", LanguageForPath("/src/Kernel.php"))
	assert.Equal(t, "yaml", LanguageForPath("config/services.YML"))
	assert.Equal(t, PlainText, LanguageForPath("README"))
}

func TestFileURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "with space.xml")
	uri := FileURI(path)
	assert.Equal(t, "file", Scheme(uri))

	back, err := FilePath(uri)
	require.NoError(t, err)
	assert.Equal(t, path, back)

	_, err = FilePath("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Equal(t, "untitled", Scheme("untitled:Untitled-1"))
	assert.Empty(t, Scheme("relative/path"))
}

func TestFileContentProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "file.txt")
	uri := FileURI(path)
	var p FileContentProvider

	require.NoError(t, p.CreateFile(ctx, uri, "one"))
	require.Error(t, p.CreateFile(ctx, uri, "two"))

	text, err := p.ResolveContent(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	require.NoError(t, p.UpdateContent(ctx, uri, "three"))
	text, err = p.ResolveContent(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "three", text)

	_, err = p.ResolveContent(ctx, "untitled:x")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func rawArgs(t *testing.T, values ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}
