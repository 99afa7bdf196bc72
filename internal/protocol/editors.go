package protocol

// Cursor styles.
const (
	CursorStyleLine = iota + 1
	CursorStyleBlock
	CursorStyleUnderline
)

// Line number rendering modes.
const (
	LineNumbersOff = iota
	LineNumbersOn
	LineNumbersRelative
)

// ResolvedTextEditorOptions is the full option set of an editor.
type ResolvedTextEditorOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
	CursorStyle  int  `json:"cursorStyle"`
	LineNumbers  int  `json:"lineNumbers"`
}

// TextEditorOptionsUpdate carries the options to change. Nil fields are left
// as they are.
type TextEditorOptionsUpdate struct {
	TabSize      *int  `json:"tabSize,omitempty"`
	InsertSpaces *bool `json:"insertSpaces,omitempty"`
	CursorStyle  *int  `json:"cursorStyle,omitempty"`
	LineNumbers  *int  `json:"lineNumbers,omitempty"`
}

// TextEditorAddData describes an editor the extension side must start
// mirroring.
type TextEditorAddData struct {
	ID             string                    `json:"id"`
	DocumentURI    string                    `json:"documentUri"`
	Options        ResolvedTextEditorOptions `json:"options"`
	Selections     []Selection               `json:"selections"`
	VisibleRanges  []Range                   `json:"visibleRanges"`
	EditorPosition int                       `json:"editorPosition,omitempty"`
}

// DocumentsAndEditorsDelta is the difference between two snapshots of open
// documents and editors. NewActiveEditor is only meaningful when
// ActiveEditorChanged is set; an empty id then means no editor is active.
type DocumentsAndEditorsDelta struct {
	RemovedDocuments    []string            `json:"removedDocuments,omitempty"`
	AddedDocuments      []ModelAddedData    `json:"addedDocuments,omitempty"`
	RemovedEditors      []string            `json:"removedEditors,omitempty"`
	AddedEditors        []TextEditorAddData `json:"addedEditors,omitempty"`
	NewActiveEditor     string              `json:"newActiveEditor,omitempty"`
	ActiveEditorChanged bool                `json:"activeEditorChanged,omitempty"`
}

// IsEmpty reports whether the delta changes nothing.
func (d DocumentsAndEditorsDelta) IsEmpty() bool {
	return len(d.RemovedDocuments) == 0 && len(d.AddedDocuments) == 0 &&
		len(d.RemovedEditors) == 0 && len(d.AddedEditors) == 0 && !d.ActiveEditorChanged
}

// SelectionChangeData carries new selections and what caused them.
type SelectionChangeData struct {
	Selections []Selection `json:"selections"`
	Source     string      `json:"source,omitempty"`
}

// EditorPropertiesChangeData carries the editor properties that changed.
type EditorPropertiesChangeData struct {
	Options       *ResolvedTextEditorOptions `json:"options,omitempty"`
	Selections    *SelectionChangeData       `json:"selections,omitempty"`
	VisibleRanges []Range                    `json:"visibleRanges,omitempty"`
}

// EditorPositionData maps editor ids to their view column.
type EditorPositionData map[string]int

// SingleEditOperation replaces Range with Text.
type SingleEditOperation struct {
	Range            Range  `json:"range"`
	Text             string `json:"text"`
	ForceMoveMarkers bool   `json:"forceMoveMarkers,omitempty"`
}

// ApplyEditsOptions control undo stops and the line ending after the edit.
type ApplyEditsOptions struct {
	UndoStopBefore bool   `json:"undoStopBefore"`
	UndoStopAfter  bool   `json:"undoStopAfter"`
	SetEndOfLine   string `json:"setEndOfLine,omitempty"`
}

// Reveal types.
const (
	RevealDefault = iota
	RevealInCenter
	RevealInCenterIfOutsideViewport
	RevealAtTop
)

// ShowTextDocumentOptions control where and how a document is shown.
type ShowTextDocumentOptions struct {
	ViewColumn    int    `json:"viewColumn,omitempty"`
	PreserveFocus bool   `json:"preserveFocus,omitempty"`
	Selection     *Range `json:"selection,omitempty"`
}

// ThemableDecorationAttachmentRenderOptions style text placed before or after
// a decoration.
type ThemableDecorationAttachmentRenderOptions struct {
	ContentText string `json:"contentText,omitempty"`
	Color       string `json:"color,omitempty"`
	Margin      string `json:"margin,omitempty"`
}

// DecorationRenderOptions style a decoration type.
type DecorationRenderOptions struct {
	IsWholeLine     bool                                       `json:"isWholeLine,omitempty"`
	BackgroundColor string                                     `json:"backgroundColor,omitempty"`
	Color           string                                     `json:"color,omitempty"`
	Border          string                                     `json:"border,omitempty"`
	FontStyle       string                                     `json:"fontStyle,omitempty"`
	FontWeight      string                                     `json:"fontWeight,omitempty"`
	TextDecoration  string                                     `json:"textDecoration,omitempty"`
	Before          *ThemableDecorationAttachmentRenderOptions `json:"before,omitempty"`
	After           *ThemableDecorationAttachmentRenderOptions `json:"after,omitempty"`
}

// DecorationOptions place one decoration.
type DecorationOptions struct {
	Range        Range            `json:"range"`
	HoverMessage []MarkdownString `json:"hoverMessage,omitempty"`
}
