package types

// MarkedString is hover or decoration content: Text, MarkdownString or
// CodeBlock.
type MarkedString interface {
	markedString()
}

// Text is plain text rendered as markdown.
type Text string

// MarkdownString is markdown content.
type MarkdownString struct {
	Value     string
	IsTrusted bool
}

// CodeBlock is source code rendered in a fenced block.
type CodeBlock struct {
	Language string
	Value    string
}

func (Text) markedString()           {}
func (MarkdownString) markedString() {}
func (CodeBlock) markedString()      {}

// Hover is the content shown when hovering a symbol.
type Hover struct {
	Contents []MarkedString
	Range    *Range
}

// Command references a command and the arguments to run it with.
type Command struct {
	Command   string
	Title     string
	Tooltip   string
	Arguments []any
}

// CompletionItemKind classifies a completion item.
type CompletionItemKind int

const (
	CompletionText CompletionItemKind = iota
	CompletionMethod
	CompletionFunction
	CompletionConstructor
	CompletionField
	CompletionVariable
	CompletionClass
	CompletionInterface
	CompletionModule
	CompletionProperty
	CompletionUnit
	CompletionValue
	CompletionEnum
	CompletionKeyword
	CompletionSnippet
	CompletionColor
	CompletionFile
	CompletionReference
	CompletionFolder
)

// CompletionItem is one proposal of a completion provider. Documentation is
// filled in lazily by a resolving provider.
type CompletionItem struct {
	Label               string
	Kind                CompletionItemKind
	Detail              string
	Documentation       MarkedString
	SortText            string
	FilterText          string
	Preselect           bool
	InsertText          string
	InsertAsSnippet     bool
	Range               *Range
	CommitCharacters    []string
	AdditionalTextEdits []TextEdit
	Command             *Command
}

// CompletionList is the result of a completion provider.
type CompletionList struct {
	Items        []*CompletionItem
	IsIncomplete bool
}

// CompletionTriggerKind tells how completion was requested.
type CompletionTriggerKind int

const (
	TriggerInvoke CompletionTriggerKind = iota
	TriggerCharacter
	TriggerForIncompleteCompletions
)

// CompletionContext is passed to completion providers.
type CompletionContext struct {
	TriggerKind      CompletionTriggerKind
	TriggerCharacter string
}

// ReferenceContext is passed to reference providers.
type ReferenceContext struct {
	IncludeDeclaration bool
}

// CodeLens shows a command inline. A lens without command must be resolved
// before it can be shown.
type CodeLens struct {
	Range   Range
	Command *Command
}

// IsResolved reports whether the lens has a command.
func (c *CodeLens) IsResolved() bool { return c.Command != nil }

// FoldingRangeKind classifies a folding range. The zero value means
// unspecified.
type FoldingRangeKind int

const (
	FoldingComment FoldingRangeKind = iota + 1
	FoldingImports
	FoldingRegion
)

// FoldingRange is a 0-based inclusive span of lines.
type FoldingRange struct {
	Start int
	End   int
	Kind  FoldingRangeKind
}

// FoldingContext is passed to folding range providers.
type FoldingContext struct{}

// DocumentHighlightKind classifies a highlight.
type DocumentHighlightKind int

const (
	HighlightText DocumentHighlightKind = iota
	HighlightRead
	HighlightWrite
)

// DocumentHighlight marks a range related to the symbol at the cursor.
type DocumentHighlight struct {
	Range Range
	Kind  DocumentHighlightKind
}

// Color is an RGBA color with components in [0, 1].
type Color struct {
	Red, Green, Blue, Alpha float64
}

// ColorInformation locates a color in a document.
type ColorInformation struct {
	Range Range
	Color Color
}

// ColorPresentation is one way to write a color.
type ColorPresentation struct {
	Label               string
	TextEdit            *TextEdit
	AdditionalTextEdits []TextEdit
}

// DocumentLink is a link in a document. Target may be left empty for a
// resolving provider to fill in.
type DocumentLink struct {
	Range   Range
	Target  string
	Tooltip string
}

// TextEdit replaces a range. NewEOL, when set, changes the document's line
// ending.
type TextEdit struct {
	Range   Range
	NewText string
	NewEOL  EndOfLine
}

// Replace returns an edit replacing r with text.
func Replace(r Range, text string) TextEdit { return TextEdit{Range: r, NewText: text} }

// Insert returns an edit inserting text at p.
func Insert(p Position, text string) TextEdit { return TextEdit{Range: NewRange(p, p), NewText: text} }

// Delete returns an edit removing r.
func Delete(r Range) TextEdit { return TextEdit{Range: r} }

// FormattingOptions describe the preferred indentation.
type FormattingOptions struct {
	TabSize      int
	InsertSpaces bool
}
