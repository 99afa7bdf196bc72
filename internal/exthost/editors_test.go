package exthost

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

func TestCheckOverlap(t *testing.T) {
	touching := []types.TextEdit{
		types.Replace(types.NewRangeOf(0, 4, 0, 8), "b"),
		types.Replace(types.NewRangeOf(0, 0, 0, 4), "a"),
		types.Insert(types.NewPosition(0, 8), "c"),
		types.Insert(types.NewPosition(0, 8), "d"),
	}
	assert.NoError(t, checkOverlap(touching))

	insertThenReplace := []types.TextEdit{
		types.Insert(types.NewPosition(0, 2), "x"),
		types.Replace(types.NewRangeOf(0, 2, 0, 4), "y"),
	}
	assert.NoError(t, checkOverlap(insertThenReplace))

	overlapping := []types.TextEdit{
		types.Replace(types.NewRangeOf(0, 0, 1, 2), "a"),
		types.Delete(types.NewRangeOf(1, 1, 1, 3)),
	}
	assert.ErrorIs(t, checkOverlap(overlapping), ErrOverlappingRanges)
}

func TestTextEditor_EditRejectsOverlapLocally(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	ok, err := s.Editors.Active().Edit(context.Background(), func(b *TextEditorEdit) {
		b.Replace(types.NewRangeOf(1, 0, 1, 6), "print")
		b.Insert(types.NewPosition(1, 3), "x")
	}, DefaultEditOptions)
	assert.False(t, ok)
	require.EqualError(t, err, "overlapping ranges are not allowed")
	assert.Zero(t, f.calledTimes("MainThreadEditors.$tryApplyEdits"))
}

func TestTextEditor_EditVersionMismatch(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	f.handle("MainThreadEditors.$tryApplyEdits", func(context.Context, []json.RawMessage) (any, error) {
		return false, nil
	})

	ok, err := s.Editors.Active().Edit(context.Background(), func(b *TextEditorEdit) {
		b.Insert(types.NewPosition(0, 0), "x")
	}, DefaultEditOptions)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTextEditor_EditWaitsForMirror(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	// The main side applies the edit and pushes the change after replying.
	f.handle("MainThreadEditors.$tryApplyEdits", func(_ context.Context, args []json.RawMessage) (any, error) {
		version, _ := rpc.Arg[int](args, 1)
		edits, _ := rpc.Arg[[]protocol.SingleEditOperation](args, 2)
		go func() {
			ev := protocol.ModelChangedEvent{VersionID: version + 1, EOL: "\n"}
			for _, e := range edits {
				ev.Changes = append(ev.Changes, protocol.ModelContentChange{Range: e.Range, Text: e.Text})
			}
			_ = protocol.NewExtDocumentsProxy(f.proto).AcceptModelChanged(context.Background(), testURI, ev, true)
		}()
		return true, nil
	})

	editor := s.Editors.Active()
	ok, err := editor.Edit(context.Background(), func(b *TextEditorEdit) {
		b.Replace(types.NewRangeOf(1, 0, 1, 4), "print")
	}, EditOptions{UndoStopBefore: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, editor.Document().Version())
	assert.Equal(t, "print $foo;", editor.Document().TextInRange(types.NewRangeOf(1, 0, 1, 11)))

	args := f.lastArgs("MainThreadEditors.$tryApplyEdits")
	assert.Equal(t, editor.ID(), arg[string](t, args, 0))
	assert.Equal(t, 1, arg[int](t, args, 1))
	assert.Equal(t, []protocol.SingleEditOperation{{
		Range: protocol.Range{StartLineNumber: 2, StartColumn: 1, EndLineNumber: 2, EndColumn: 5},
		Text:  "print",
	}}, arg[[]protocol.SingleEditOperation](t, args, 2))
	opts := arg[protocol.ApplyEditsOptions](t, args, 3)
	assert.True(t, opts.UndoStopBefore)
	assert.False(t, opts.UndoStopAfter)
}

func TestTextEditor_SetEndOfLineOnly(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	_, err := s.Editors.Active().Edit(context.Background(), func(b *TextEditorEdit) {
		b.SetEndOfLine(types.CRLF)
	}, DefaultEditOptions)
	require.NoError(t, err)

	args := f.lastArgs("MainThreadEditors.$tryApplyEdits")
	assert.Empty(t, arg[[]protocol.SingleEditOperation](t, args, 2))
	assert.Equal(t, "\r\n", arg[protocol.ApplyEditsOptions](t, args, 3).SetEndOfLine)
}

func TestEditors_PropertiesChanged(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	editor := s.Editors.Active()

	var mu sync.Mutex
	var selections []SelectionChangeEvent
	var options []OptionsChangeEvent
	s.Editors.OnDidChangeTextEditorSelection.Subscribe(func(e SelectionChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		selections = append(selections, e)
	})
	s.Editors.OnDidChangeTextEditorOptions.Subscribe(func(e OptionsChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		options = append(options, e)
	})

	ext := protocol.NewExtEditorsProxy(f.proto)
	require.NoError(t, ext.AcceptEditorPropertiesChanged(context.Background(), editor.ID(), protocol.EditorPropertiesChangeData{
		Selections: &protocol.SelectionChangeData{
			Selections: []protocol.Selection{{SelectionStartLineNumber: 2, SelectionStartColumn: 6, PositionLineNumber: 2, PositionColumn: 1}},
			Source:     "mouse",
		},
	}))
	require.NoError(t, ext.AcceptEditorPropertiesChanged(context.Background(), editor.ID(), protocol.EditorPropertiesChangeData{
		Options: &protocol.ResolvedTextEditorOptions{TabSize: 2, InsertSpaces: false, CursorStyle: 2, LineNumbers: 2},
	}))

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(selections) == 1 && len(options) == 1
	})
	sel := editor.Selection()
	assert.Equal(t, types.NewPosition(1, 5), sel.Anchor)
	assert.Equal(t, types.NewPosition(1, 0), sel.Active)
	assert.True(t, sel.IsReversed())
	assert.Equal(t, types.SelectionMouse, selections[0].Kind)

	assert.Equal(t, 2, *editor.Options().TabSize)
	assert.Equal(t, types.CursorBlock, options[0].Options.CursorStyle)
	assert.Equal(t, types.LineNumbersRelative, editor.Options().LineNumbers)
}

func TestEditors_PositionData(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	editor := s.Editors.Active()
	assert.Equal(t, types.ViewColumnOne, editor.ViewColumn())

	moved := make(chan ViewColumnChangeEvent, 1)
	s.Editors.OnDidChangeTextEditorViewColumn.Subscribe(func(e ViewColumnChangeEvent) { moved <- e })

	require.NoError(t, protocol.NewExtEditorsProxy(f.proto).AcceptEditorPositionData(context.Background(),
		protocol.EditorPositionData{editor.ID(): 1, "unknown": 0}))
	e := <-moved
	assert.Equal(t, types.ViewColumnTwo, e.ViewColumn)
	assert.Equal(t, types.ViewColumnTwo, editor.ViewColumn())
}

func TestTextEditor_Setters(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	editor := s.Editors.Active()
	ctx := context.Background()

	sel := types.NewSelection(types.NewPosition(1, 0), types.NewPosition(1, 4))
	require.NoError(t, editor.SetSelections(ctx, []types.Selection{sel}))
	assert.Equal(t, sel, editor.Selection())
	got := arg[[]protocol.Selection](t, f.lastArgs("MainThreadEditors.$trySetSelections"), 1)
	assert.Equal(t, []protocol.Selection{{SelectionStartLineNumber: 2, SelectionStartColumn: 1, PositionLineNumber: 2, PositionColumn: 5}}, got)
	assert.ErrorIs(t, editor.SetSelections(ctx, nil), rpc.ErrInvalidArguments)

	tabSize := 8
	require.NoError(t, editor.SetOptions(ctx, types.TextEditorOptions{TabSize: &tabSize}))
	update := arg[protocol.TextEditorOptionsUpdate](t, f.lastArgs("MainThreadEditors.$trySetOptions"), 1)
	require.NotNil(t, update.TabSize)
	assert.Equal(t, 8, *update.TabSize)
	assert.Nil(t, update.CursorStyle)

	require.NoError(t, editor.RevealRange(ctx, types.NewRangeOf(1, 0, 1, 1), types.RevealInCenter))
	revealArgs := f.lastArgs("MainThreadEditors.$tryRevealRange")
	assert.Equal(t, protocol.RevealInCenter, arg[int](t, revealArgs, 2))
}

func TestWindow_ShowTextDocumentWaitsForEditor(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	const other = "file:///project/src/b.php"
	require.NoError(t, protocol.NewExtDocumentsAndEditorsProxy(f.proto).AcceptDocumentsAndEditorsDelta(context.Background(), protocol.DocumentsAndEditorsDelta{
		AddedDocuments: []protocol.ModelAddedData{{URI: other, VersionID: 1, Lines: []string{"b"}, EOL: "\n", LanguageID: "php"}},
	}))
	eventually(t, func() bool { _, ok := s.Documents.Get(other); return ok })
	doc, _ := s.Documents.Get(other)

	f.handle("MainThreadEditors.$tryShowTextDocument", func(_ context.Context, args []json.RawMessage) (any, error) {
		opts, _ := rpc.Arg[protocol.ShowTextDocumentOptions](args, 1)
		id := "1:" + other
		go func() {
			_ = protocol.NewExtDocumentsAndEditorsProxy(f.proto).AcceptDocumentsAndEditorsDelta(context.Background(), protocol.DocumentsAndEditorsDelta{
				AddedEditors: []protocol.TextEditorAddData{{ID: id, DocumentURI: other, EditorPosition: opts.ViewColumn}},
			})
		}()
		return id, nil
	})

	editor, err := s.Window.ShowTextDocument(context.Background(), doc, ShowOptions{ViewColumn: types.ViewColumnTwo, PreserveFocus: true})
	require.NoError(t, err)
	assert.Equal(t, "1:"+other, editor.ID())
	assert.Same(t, doc, editor.Document())
	assert.Equal(t, types.ViewColumnTwo, editor.ViewColumn())
	assert.Len(t, s.Window.VisibleTextEditors(), 2)

	opts := arg[protocol.ShowTextDocumentOptions](t, f.lastArgs("MainThreadEditors.$tryShowTextDocument"), 1)
	assert.Equal(t, 1, opts.ViewColumn)
	assert.True(t, opts.PreserveFocus)
}

func TestWindow_DecorationTypes(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	ctx := context.Background()

	dt, err := s.Window.CreateTextEditorDecorationType(ctx, protocol.DecorationRenderOptions{BackgroundColor: "red"})
	require.NoError(t, err)
	assert.Equal(t, dt.Key(), arg[int](t, f.lastArgs("MainThreadEditors.$registerTextEditorDecorationType"), 0))

	err = s.Editors.Active().SetDecorations(ctx, dt, []types.DecorationOptions{{
		Range:        types.NewRangeOf(0, 0, 0, 5),
		HoverMessage: types.Text("hi"),
	}})
	require.NoError(t, err)
	args := f.lastArgs("MainThreadEditors.$trySetDecorations")
	assert.Equal(t, dt.Key(), arg[int](t, args, 1))
	decorations := arg[[]protocol.DecorationOptions](t, args, 2)
	require.Len(t, decorations, 1)
	assert.Equal(t, protocol.Range{StartLineNumber: 1, StartColumn: 1, EndLineNumber: 1, EndColumn: 6}, decorations[0].Range)

	dt.Dispose()
	dt.Dispose()
	assert.Equal(t, 1, f.calledTimes("MainThreadEditors.$removeTextEditorDecorationType"))

	other, err := s.Window.CreateTextEditorDecorationType(ctx, protocol.DecorationRenderOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, dt.Key(), other.Key())
}
