package types

// ViewColumn is an editor column. Negative values are symbolic.
type ViewColumn int

const (
	ViewColumnBeside ViewColumn = -2
	ViewColumnActive ViewColumn = -1
	ViewColumnOne    ViewColumn = 1
	ViewColumnTwo    ViewColumn = 2
	ViewColumnThree  ViewColumn = 3
)

// TextEditorCursorStyle is the cursor shape.
type TextEditorCursorStyle int

const (
	CursorLine TextEditorCursorStyle = iota + 1
	CursorBlock
	CursorUnderline
)

// TextEditorLineNumbersStyle is how line numbers are rendered.
type TextEditorLineNumbersStyle int

const (
	LineNumbersOff TextEditorLineNumbersStyle = iota
	LineNumbersOn
	LineNumbersRelative
)

// TextEditorOptions are the options of an editor. When used as an update,
// nil and zero fields are left unchanged.
type TextEditorOptions struct {
	TabSize      *int
	InsertSpaces *bool
	CursorStyle  TextEditorCursorStyle
	LineNumbers  TextEditorLineNumbersStyle
}

// TextEditorRevealType is how a range is revealed.
type TextEditorRevealType int

const (
	RevealDefault TextEditorRevealType = iota
	RevealInCenter
	RevealInCenterIfOutsideViewport
	RevealAtTop
)

// TextEditorSelectionChangeKind is what caused a selection change.
type TextEditorSelectionChangeKind string

const (
	SelectionKeyboard TextEditorSelectionChangeKind = "keyboard"
	SelectionMouse    TextEditorSelectionChangeKind = "mouse"
	SelectionCommand  TextEditorSelectionChangeKind = "api"
)

// DecorationOptions place one decoration.
type DecorationOptions struct {
	Range        Range
	HoverMessage MarkedString
}
