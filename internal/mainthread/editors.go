package mainthread

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// DefaultEditorOptions are the options of a newly opened editor.
var DefaultEditorOptions = protocol.ResolvedTextEditorOptions{
	TabSize:      4,
	InsertSpaces: true,
	CursorStyle:  protocol.CursorStyleLine,
	LineNumbers:  protocol.LineNumbersOn,
}

// Editor is a copy of an editor's state.
type Editor struct {
	ID            string
	URI           string
	Group         int
	Options       protocol.ResolvedTextEditorOptions
	Selections    []protocol.Selection
	VisibleRanges []protocol.Range
}

type editor struct {
	Editor
	decorations map[int][]protocol.DecorationOptions
}

func (e *editor) addData() protocol.TextEditorAddData {
	return protocol.TextEditorAddData{
		ID:             e.ID,
		DocumentURI:    e.URI,
		Options:        e.Options,
		Selections:     append([]protocol.Selection(nil), e.Selections...),
		VisibleRanges:  append([]protocol.Range(nil), e.VisibleRanges...),
		EditorPosition: e.Group,
	}
}

func (e *editor) copy() Editor {
	c := e.Editor
	c.Selections = append([]protocol.Selection(nil), e.Selections...)
	c.VisibleRanges = append([]protocol.Range(nil), e.VisibleRanges...)
	return c
}

// EditorID derives the id of the editor showing uri in group.
func EditorID(group int, uri string) string {
	return fmt.Sprintf("%d:%s", group, uri)
}

// Editors owns the open editors and the decoration types.
type Editors struct {
	s      *Session
	logger *zap.Logger

	// guarded by s.state
	editors map[string]*editor
	active  string

	decoMu          sync.RWMutex
	decorationTypes map[int]protocol.DecorationRenderOptions
}

func newEditors(s *Session) *Editors {
	return &Editors{
		s:               s,
		logger:          s.logger.Named("editors"),
		editors:         make(map[string]*editor),
		decorationTypes: make(map[int]protocol.DecorationRenderOptions),
	}
}

func (e *Editors) methods() rpc.Methods {
	return rpc.Methods{
		"$tryShowTextDocument": rpc.Func2(e.showTextDocument),
		"$trySetSelections": rpc.Action2(func(_ context.Context, id string, sels []protocol.Selection) error {
			return e.SetSelections(id, sels, "api")
		}),
		"$tryRevealRange": rpc.Action3(e.revealRange),
		"$trySetOptions": rpc.Action2(func(_ context.Context, id string, update protocol.TextEditorOptionsUpdate) error {
			return e.SetOptions(id, update)
		}),
		"$tryApplyEdits":                   rpc.Func4(e.tryApplyEdits),
		"$registerTextEditorDecorationType": rpc.Action2(e.registerDecorationType),
		"$removeTextEditorDecorationType":   rpc.Action1(e.removeDecorationType),
		"$trySetDecorations":                rpc.Action3(e.setDecorations),
	}
}

// Open shows the model at uri in group and returns the editor id. The
// model must be open.
func (e *Editors) Open(group int, uri string) (string, error) {
	e.s.state.Lock()
	defer e.s.state.Unlock()
	return e.openLocked(group, uri)
}

func (e *Editors) openLocked(group int, uri string) (string, error) {
	md, ok := e.s.Models.models[uri]
	if !ok {
		return "", fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	id := EditorID(group, uri)
	if _, exists := e.editors[id]; exists {
		return id, nil
	}

	last := md.text.LineCount()
	e.editors[id] = &editor{
		Editor: Editor{
			ID:      id,
			URI:     uri,
			Group:   group,
			Options: DefaultEditorOptions,
			Selections: []protocol.Selection{{
				SelectionStartLineNumber: 1, SelectionStartColumn: 1,
				PositionLineNumber: 1, PositionColumn: 1,
			}},
			VisibleRanges: []protocol.Range{{
				StartLineNumber: 1, StartColumn: 1,
				EndLineNumber: last, EndColumn: md.text.LineMaxColumn(last),
			}},
		},
		decorations: make(map[int][]protocol.DecorationOptions),
	}
	e.s.publishLocked()
	return id, nil
}

// Close closes an editor.
func (e *Editors) Close(id string) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	if _, ok := e.editors[id]; !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	delete(e.editors, id)
	if e.active == id {
		e.active = ""
	}
	e.s.publishLocked()
	return nil
}

func (e *Editors) closeDocumentLocked(uri string) {
	for id, ed := range e.editors {
		if ed.URI == uri {
			delete(e.editors, id)
			if e.active == id {
				e.active = ""
			}
		}
	}
}

// Activate makes id the active editor. An empty id clears it.
func (e *Editors) Activate(id string) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()
	return e.activateLocked(id)
}

func (e *Editors) activateLocked(id string) error {
	if id != "" {
		if _, ok := e.editors[id]; !ok {
			return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
		}
	}
	e.active = id
	e.s.publishLocked()
	return nil
}

// Active returns the active editor id, or "".
func (e *Editors) Active() string {
	e.s.state.Lock()
	defer e.s.state.Unlock()
	return e.active
}

// Get returns a copy of an editor.
func (e *Editors) Get(id string) (Editor, bool) {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return Editor{}, false
	}
	return ed.copy(), true
}

// IDs returns the open editor ids, sorted.
func (e *Editors) IDs() []string {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ids := make([]string, 0, len(e.editors))
	for id := range e.editors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetSelections replaces the selections of an editor. source names the
// cause, such as "keyboard", "mouse" or "api".
func (e *Editors) SetSelections(id string, selections []protocol.Selection, source string) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	ed.Selections = append([]protocol.Selection(nil), selections...)
	e.pushLocked(id, protocol.EditorPropertiesChangeData{
		Selections: &protocol.SelectionChangeData{Selections: ed.Selections, Source: source},
	})
	return nil
}

// SetOptions applies an options update.
func (e *Editors) SetOptions(id string, update protocol.TextEditorOptionsUpdate) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	if update.TabSize != nil {
		if *update.TabSize < 1 {
			return fmt.Errorf("%w: tab size must be positive", rpc.ErrInvalidArguments)
		}
		ed.Options.TabSize = *update.TabSize
	}
	if update.InsertSpaces != nil {
		ed.Options.InsertSpaces = *update.InsertSpaces
	}
	if update.CursorStyle != nil {
		ed.Options.CursorStyle = *update.CursorStyle
	}
	if update.LineNumbers != nil {
		ed.Options.LineNumbers = *update.LineNumbers
	}
	options := ed.Options
	e.pushLocked(id, protocol.EditorPropertiesChangeData{Options: &options})
	return nil
}

// SetVisibleRanges records what part of the document an editor shows.
func (e *Editors) SetVisibleRanges(id string, ranges []protocol.Range) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	ed.VisibleRanges = append([]protocol.Range(nil), ranges...)
	e.pushLocked(id, protocol.EditorPropertiesChangeData{VisibleRanges: ed.VisibleRanges})
	return nil
}

// SetGroup moves an editor to another group. The id stays the same.
func (e *Editors) SetGroup(id string, group int) error {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	if ed.Group == group {
		return nil
	}
	ed.Group = group
	if e.s.synced {
		e.s.notify("$acceptEditorPositionData", e.s.extEditors.AcceptEditorPositionData(context.Background(),
			protocol.EditorPositionData{id: group}))
	}
	return nil
}

// Decorations returns the decorations of one type set on an editor.
func (e *Editors) Decorations(id string, key int) []protocol.DecorationOptions {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	if ed, ok := e.editors[id]; ok {
		return append([]protocol.DecorationOptions(nil), ed.decorations[key]...)
	}
	return nil
}

// DecorationType returns the render options registered under key.
func (e *Editors) DecorationType(key int) (protocol.DecorationRenderOptions, bool) {
	e.decoMu.RLock()
	defer e.decoMu.RUnlock()
	opts, ok := e.decorationTypes[key]
	return opts, ok
}

func (e *Editors) pushLocked(id string, props protocol.EditorPropertiesChangeData) {
	if !e.s.synced {
		return
	}
	if _, sent := e.s.sent.Editors[id]; !sent {
		return
	}
	e.s.notify("$acceptEditorPropertiesChanged", e.s.extEditors.AcceptEditorPropertiesChanged(context.Background(), id, props))
}

func (e *Editors) showTextDocument(ctx context.Context, uri string, opts protocol.ShowTextDocumentOptions) (string, error) {
	if _, err := e.s.Models.Open(ctx, uri, ""); err != nil {
		return "", err
	}

	e.s.state.Lock()
	defer e.s.state.Unlock()

	activeGroup := 0
	if ed, ok := e.editors[e.active]; ok {
		activeGroup = ed.Group
	}
	group := opts.ViewColumn
	switch {
	case group == -1:
		group = activeGroup
	case group == -2:
		group = activeGroup + 1
	case group < 0:
		return "", fmt.Errorf("%w: view column %d", rpc.ErrInvalidArguments, opts.ViewColumn)
	}

	id, err := e.openLocked(group, uri)
	if err != nil {
		return "", err
	}
	if opts.Selection != nil {
		r := e.s.Models.models[uri].text.ValidateRange(*opts.Selection)
		ed := e.editors[id]
		ed.Selections = []protocol.Selection{{
			SelectionStartLineNumber: r.StartLineNumber, SelectionStartColumn: r.StartColumn,
			PositionLineNumber: r.EndLineNumber, PositionColumn: r.EndColumn,
		}}
		e.pushLocked(id, protocol.EditorPropertiesChangeData{
			Selections: &protocol.SelectionChangeData{Selections: ed.Selections, Source: "api"},
		})
	}
	if !opts.PreserveFocus || e.active == "" {
		if err := e.activateLocked(id); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (e *Editors) revealRange(ctx context.Context, id string, rng protocol.Range, revealType int) error {
	if _, ok := e.Get(id); !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	return e.s.Window.shell.RevealRange(ctx, id, rng, revealType)
}

// tryApplyEdits applies edits when the document is still at versionID.
// A version mismatch is reported as false, not as an error.
func (e *Editors) tryApplyEdits(_ context.Context, id string, versionID int, edits []protocol.SingleEditOperation, opts protocol.ApplyEditsOptions) (bool, error) {
	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return false, fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	md, ok := e.s.Models.models[ed.URI]
	if !ok {
		return false, fmt.Errorf("%w: document %s", rpc.ErrNotFound, ed.URI)
	}
	if md.text.Version() != versionID {
		e.logger.Debug("rejected edits for a stale version",
			zap.String("editor", id), zap.Int("have", md.text.Version()), zap.Int("got", versionID))
		return false, nil
	}
	if len(edits) == 0 && opts.SetEndOfLine == "" {
		return true, nil
	}
	if _, err := e.s.Models.applyEditsLocked(ed.URI, edits, opts.SetEndOfLine); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Editors) registerDecorationType(_ context.Context, key int, options protocol.DecorationRenderOptions) error {
	e.decoMu.Lock()
	defer e.decoMu.Unlock()
	e.decorationTypes[key] = options
	return nil
}

func (e *Editors) removeDecorationType(_ context.Context, key int) error {
	e.decoMu.Lock()
	delete(e.decorationTypes, key)
	e.decoMu.Unlock()

	e.s.state.Lock()
	defer e.s.state.Unlock()
	for _, ed := range e.editors {
		delete(ed.decorations, key)
	}
	return nil
}

func (e *Editors) setDecorations(_ context.Context, id string, key int, decorations []protocol.DecorationOptions) error {
	if _, ok := e.DecorationType(key); !ok {
		return fmt.Errorf("%w: decoration type %d", rpc.ErrUnknownHandle, key)
	}

	e.s.state.Lock()
	defer e.s.state.Unlock()

	ed, ok := e.editors[id]
	if !ok {
		return fmt.Errorf("%w: editor %s", rpc.ErrNotFound, id)
	}
	if len(decorations) == 0 {
		delete(ed.decorations, key)
		return nil
	}
	ed.decorations[key] = append([]protocol.DecorationOptions(nil), decorations...)
	return nil
}
