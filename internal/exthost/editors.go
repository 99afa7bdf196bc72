package exthost

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/typeconvert"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/handle"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/textmodel"
)

// ErrOverlappingRanges is returned by TextEditor.Edit when two edits of one
// call overlap.
var ErrOverlappingRanges = textmodel.ErrOverlappingRanges

// ErrEditorDisposed is returned when an editor is used after the main side
// closed it.
var ErrEditorDisposed = errors.New("text editor has been disposed")

// EditOptions control undo stops around an edit.
type EditOptions struct {
	UndoStopBefore bool
	UndoStopAfter  bool
}

// DefaultEditOptions places an undo stop before and after the edit.
var DefaultEditOptions = EditOptions{UndoStopBefore: true, UndoStopAfter: true}

// TextEditorEdit collects the edits of one TextEditor.Edit call.
type TextEditorEdit struct {
	edits []types.TextEdit
	eol   types.EndOfLine
}

// Replace replaces r with text.
func (b *TextEditorEdit) Replace(r types.Range, text string) {
	b.edits = append(b.edits, types.Replace(r, text))
}

// Insert inserts text at p.
func (b *TextEditorEdit) Insert(p types.Position, text string) {
	b.edits = append(b.edits, types.Insert(p, text))
}

// Delete removes r.
func (b *TextEditorEdit) Delete(r types.Range) {
	b.edits = append(b.edits, types.Delete(r))
}

// SetEndOfLine changes the line ending of the document.
func (b *TextEditorEdit) SetEndOfLine(eol types.EndOfLine) {
	b.eol = eol
}

// checkOverlap rejects edits whose ranges overlap, with the same ordering
// the main side applies them in. Touching ranges are fine.
func checkOverlap(edits []types.TextEdit) error {
	ranges := make([]protocol.Range, len(edits))
	for i, e := range edits {
		ranges[i] = typeconvert.FromRange(e.Range)
	}
	_, err := textmodel.EditOrder(ranges)
	return err
}

// TextEditor is the mirror of an editor on the main side.
type TextEditor struct {
	editors *Editors
	id      string
	doc     *Document

	mu            sync.RWMutex
	options       types.TextEditorOptions
	selections    []types.Selection
	visibleRanges []types.Range
	viewColumn    types.ViewColumn
	disposed      bool
}

// ID returns the editor id assigned by the main side.
func (e *TextEditor) ID() string { return e.id }

// Document returns the document shown in the editor.
func (e *TextEditor) Document() *Document { return e.doc }

// Options returns the resolved editor options.
func (e *TextEditor) Options() types.TextEditorOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options
}

// Selections returns the selections, primary first.
func (e *TextEditor) Selections() []types.Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]types.Selection(nil), e.selections...)
}

// Selection returns the primary selection.
func (e *TextEditor) Selection() types.Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.selections) == 0 {
		return types.Selection{}
	}
	return e.selections[0]
}

// VisibleRanges returns the ranges currently scrolled into view.
func (e *TextEditor) VisibleRanges() []types.Range {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]types.Range(nil), e.visibleRanges...)
}

// ViewColumn returns the column the editor is shown in.
func (e *TextEditor) ViewColumn() types.ViewColumn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewColumn
}

func (e *TextEditor) checkDisposed() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.disposed {
		return fmt.Errorf("%w: %s", ErrEditorDisposed, e.id)
	}
	return nil
}

// SetSelections replaces the selections.
func (e *TextEditor) SetSelections(ctx context.Context, selections []types.Selection) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	if len(selections) == 0 {
		return fmt.Errorf("%w: at least one selection is required", rpc.ErrInvalidArguments)
	}
	out := make([]protocol.Selection, len(selections))
	for i, sel := range selections {
		out[i] = typeconvert.FromSelection(sel)
	}
	if err := e.editors.main.TrySetSelections(ctx, e.id, out); err != nil {
		return err
	}

	e.mu.Lock()
	e.selections = append([]types.Selection(nil), selections...)
	e.mu.Unlock()
	return nil
}

// SetOptions changes the editor options. Unset fields are left unchanged.
func (e *TextEditor) SetOptions(ctx context.Context, options types.TextEditorOptions) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	return e.editors.main.TrySetOptions(ctx, e.id, typeconvert.FromTextEditorOptions(options))
}

// RevealRange scrolls r into view.
func (e *TextEditor) RevealRange(ctx context.Context, r types.Range, revealType types.TextEditorRevealType) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	return e.editors.main.TryRevealRange(ctx, e.id, typeconvert.FromRange(r), int(revealType))
}

// SetDecorations places decorations of the given type, replacing the ones
// placed before.
func (e *TextEditor) SetDecorations(ctx context.Context, decorationType *TextEditorDecorationType, decorations []types.DecorationOptions) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	return e.editors.main.TrySetDecorations(ctx, e.id, decorationType.Key(), typeconvert.FromDecorationOptions(decorations))
}

// Edit applies the edits collected by build as one change. It reports false
// when the document changed since the editor's version was read; nothing is
// applied then. On success Edit returns once the change is mirrored.
func (e *TextEditor) Edit(ctx context.Context, build func(*TextEditorEdit), opts EditOptions) (bool, error) {
	if err := e.checkDisposed(); err != nil {
		return false, err
	}

	var b TextEditorEdit
	build(&b)
	if err := checkOverlap(b.edits); err != nil {
		return false, err
	}
	if len(b.edits) == 0 && b.eol == 0 {
		return true, nil
	}

	version := e.doc.Version()
	ops := make([]protocol.SingleEditOperation, len(b.edits))
	for i, edit := range b.edits {
		ops[i] = typeconvert.FromSingleEdit(edit)
	}
	applyOpts := protocol.ApplyEditsOptions{UndoStopBefore: opts.UndoStopBefore, UndoStopAfter: opts.UndoStopAfter}
	if b.eol != 0 {
		applyOpts.SetEndOfLine = typeconvert.FromEOL(b.eol)
	}

	applied, err := e.editors.main.TryApplyEdits(ctx, e.id, version, ops, applyOpts)
	if err != nil || !applied {
		return false, err
	}

	err = e.editors.changed.wait(ctx, func() bool {
		return e.doc.IsClosed() || e.doc.Version() > version
	})
	if err != nil {
		return true, fmt.Errorf("waiting for the edit to be mirrored: %w", err)
	}
	return true, nil
}

// SelectionChangeEvent is fired when an editor's selections change.
type SelectionChangeEvent struct {
	Editor     *TextEditor
	Selections []types.Selection
	Kind       types.TextEditorSelectionChangeKind
}

// OptionsChangeEvent is fired when an editor's options change.
type OptionsChangeEvent struct {
	Editor  *TextEditor
	Options types.TextEditorOptions
}

// VisibleRangesChangeEvent is fired when an editor scrolls.
type VisibleRangesChangeEvent struct {
	Editor        *TextEditor
	VisibleRanges []types.Range
}

// ViewColumnChangeEvent is fired when an editor moves to another column.
type ViewColumnChangeEvent struct {
	Editor     *TextEditor
	ViewColumn types.ViewColumn
}

// TextEditorDecorationType is a decoration style registered with the main
// side.
type TextEditorDecorationType struct {
	key     handle.Handle
	editors *Editors
	dispose event.Disposable
}

// Key returns the key the main side knows the type by.
func (t *TextEditorDecorationType) Key() int { return int(t.key) }

// Dispose removes the type and its decorations.
func (t *TextEditorDecorationType) Dispose() { t.dispose.Dispose() }

// Editors mirrors the editors open on the main side.
type Editors struct {
	logger  *zap.Logger
	main    protocol.EditorsProxy
	docs    *Documents
	changed *signal

	mu      sync.RWMutex
	editors map[string]*TextEditor
	active  string

	decorationTypes *handle.Arena[protocol.DecorationRenderOptions]

	OnDidChangeActiveTextEditor        event.Emitter[*TextEditor]
	OnDidChangeVisibleTextEditors      event.Emitter[[]*TextEditor]
	OnDidChangeTextEditorSelection     event.Emitter[SelectionChangeEvent]
	OnDidChangeTextEditorOptions       event.Emitter[OptionsChangeEvent]
	OnDidChangeTextEditorVisibleRanges event.Emitter[VisibleRangesChangeEvent]
	OnDidChangeTextEditorViewColumn    event.Emitter[ViewColumnChangeEvent]
}

func newEditors(s *Session) *Editors {
	return &Editors{
		logger:          s.logger.Named("editors"),
		main:            protocol.NewEditorsProxy(s.proto),
		docs:            s.Documents,
		changed:         s.mirrorChanged,
		editors:         make(map[string]*TextEditor),
		decorationTypes: handle.New[protocol.DecorationRenderOptions](),
	}
}

func (es *Editors) methods() rpc.Methods {
	return rpc.Methods{
		"$acceptEditorPropertiesChanged": rpc.Action2(func(_ context.Context, id string, props protocol.EditorPropertiesChangeData) error {
			es.acceptProperties(id, props)
			return nil
		}),
		"$acceptEditorPositionData": rpc.Action1(func(_ context.Context, data protocol.EditorPositionData) error {
			es.acceptPositions(data)
			return nil
		}),
	}
}

// Get returns the editor with id.
func (es *Editors) Get(id string) (*TextEditor, bool) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	e, ok := es.editors[id]
	return e, ok
}

// Active returns the focused editor, or nil.
func (es *Editors) Active() *TextEditor {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.editors[es.active]
}

// Visible returns every mirrored editor ordered by id.
func (es *Editors) Visible() []*TextEditor {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.visibleLocked()
}

func (es *Editors) visibleLocked() []*TextEditor {
	out := make([]*TextEditor, 0, len(es.editors))
	for _, e := range es.editors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (es *Editors) accept(delta protocol.DocumentsAndEditorsDelta) {
	es.mu.Lock()
	var removed []*TextEditor
	for _, id := range delta.RemovedEditors {
		if e, ok := es.editors[id]; ok {
			delete(es.editors, id)
			removed = append(removed, e)
		}
	}
	added := 0
	for _, data := range delta.AddedEditors {
		doc, ok := es.docs.Get(data.DocumentURI)
		if !ok {
			es.logger.Warn("editor for unknown document", zap.String("editor", data.ID), zap.String("uri", data.DocumentURI))
			continue
		}
		es.editors[data.ID] = &TextEditor{
			editors:       es,
			id:            data.ID,
			doc:           doc,
			options:       typeconvert.ToTextEditorOptions(data.Options),
			selections:    typeconvert.ToSelections(data.Selections),
			visibleRanges: typeconvert.ToRanges(data.VisibleRanges),
			viewColumn:    typeconvert.ToViewColumn(data.EditorPosition),
		}
		added++
	}
	activeChanged := delta.ActiveEditorChanged && es.active != delta.NewActiveEditor
	if delta.ActiveEditorChanged {
		es.active = delta.NewActiveEditor
	}
	active := es.editors[es.active]
	visible := es.visibleLocked()
	es.mu.Unlock()

	for _, e := range removed {
		e.mu.Lock()
		e.disposed = true
		e.mu.Unlock()
	}
	es.changed.broadcast()

	if len(removed) > 0 || added > 0 {
		es.OnDidChangeVisibleTextEditors.Fire(visible)
	}
	if activeChanged {
		es.OnDidChangeActiveTextEditor.Fire(active)
	}
}

func (es *Editors) acceptProperties(id string, props protocol.EditorPropertiesChangeData) {
	e, ok := es.Get(id)
	if !ok {
		es.logger.Warn("properties for unknown editor", zap.String("editor", id))
		return
	}

	e.mu.Lock()
	if props.Options != nil {
		e.options = typeconvert.ToTextEditorOptions(*props.Options)
	}
	if props.Selections != nil {
		e.selections = typeconvert.ToSelections(props.Selections.Selections)
	}
	if props.VisibleRanges != nil {
		e.visibleRanges = typeconvert.ToRanges(props.VisibleRanges)
	}
	options, selections, visible := e.options, append([]types.Selection(nil), e.selections...), append([]types.Range(nil), e.visibleRanges...)
	e.mu.Unlock()

	if props.Options != nil {
		es.OnDidChangeTextEditorOptions.Fire(OptionsChangeEvent{Editor: e, Options: options})
	}
	if props.Selections != nil {
		es.OnDidChangeTextEditorSelection.Fire(SelectionChangeEvent{
			Editor:     e,
			Selections: selections,
			Kind:       types.TextEditorSelectionChangeKind(props.Selections.Source),
		})
	}
	if props.VisibleRanges != nil {
		es.OnDidChangeTextEditorVisibleRanges.Fire(VisibleRangesChangeEvent{Editor: e, VisibleRanges: visible})
	}
}

func (es *Editors) acceptPositions(data protocol.EditorPositionData) {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		e, ok := es.Get(id)
		if !ok {
			continue
		}
		column := typeconvert.ToViewColumn(data[id])
		e.mu.Lock()
		changed := e.viewColumn != column
		e.viewColumn = column
		e.mu.Unlock()
		if changed {
			es.OnDidChangeTextEditorViewColumn.Fire(ViewColumnChangeEvent{Editor: e, ViewColumn: column})
		}
	}
}

func (es *Editors) createDecorationType(ctx context.Context, options protocol.DecorationRenderOptions) (*TextEditorDecorationType, error) {
	key, err := es.decorationTypes.Alloc(options)
	if err != nil {
		return nil, err
	}
	if err := es.main.RegisterTextEditorDecorationType(ctx, int(key), options); err != nil {
		_, _ = es.decorationTypes.Release(key)
		return nil, err
	}

	t := &TextEditorDecorationType{key: key, editors: es}
	t.dispose = event.Once(func() {
		if _, err := es.decorationTypes.Release(key); err != nil {
			return
		}
		if err := es.main.RemoveTextEditorDecorationType(context.Background(), int(key)); err != nil {
			es.logger.Warn("failed to remove decoration type", zap.Int("key", int(key)), zap.Error(err))
		}
	})
	return t, nil
}

// showDocument asks the main side to show uri and waits for the editor to
// be mirrored.
func (es *Editors) showDocument(ctx context.Context, uri string, options protocol.ShowTextDocumentOptions) (*TextEditor, error) {
	id, err := es.main.TryShowTextDocument(ctx, uri, options)
	if err != nil {
		return nil, err
	}

	var editor *TextEditor
	err = es.changed.wait(ctx, func() bool {
		e, ok := es.Get(id)
		editor = e
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for editor %s: %w", id, err)
	}
	return editor, nil
}
