package protocol

import "encoding/json"

// MarkdownString is formatted text.
type MarkdownString struct {
	Value     string `json:"value"`
	IsTrusted bool   `json:"isTrusted,omitempty"`
}

// Hover is the result of a hover request.
type Hover struct {
	Contents []MarkdownString `json:"contents"`
	Range    *Range           `json:"range,omitempty"`
}

// Command references a command by id. Arguments are serialized values; the
// extension side replaces commands with unserializable arguments by a
// forwarding command before sending them.
type Command struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Tooltip   string            `json:"tooltip,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// CommandHandlerDescription documents a contributed command.
type CommandHandlerDescription struct {
	Description string   `json:"description"`
	Args        []string `json:"args,omitempty"`
	Returns     string   `json:"returns,omitempty"`
}

// CacheID addresses an item kept on the extension side between a provide
// call and the resolve calls that follow it.
type CacheID struct {
	ParentID int `json:"parentId"`
	ItemID   int `json:"itemId"`
}

// CompletionItemKind names the kind of a suggestion.
type CompletionItemKind string

// Suggestion kinds.
const (
	KindMethod      CompletionItemKind = "method"
	KindFunction    CompletionItemKind = "function"
	KindConstructor CompletionItemKind = "constructor"
	KindField       CompletionItemKind = "field"
	KindVariable    CompletionItemKind = "variable"
	KindClass       CompletionItemKind = "class"
	KindInterface   CompletionItemKind = "interface"
	KindModule      CompletionItemKind = "module"
	KindProperty    CompletionItemKind = "property"
	KindUnit        CompletionItemKind = "unit"
	KindValue       CompletionItemKind = "value"
	KindEnum        CompletionItemKind = "enum"
	KindKeyword     CompletionItemKind = "keyword"
	KindSnippet     CompletionItemKind = "snippet"
	KindText        CompletionItemKind = "text"
	KindColor       CompletionItemKind = "color"
	KindFile        CompletionItemKind = "file"
	KindReference   CompletionItemKind = "reference"
	KindFolder      CompletionItemKind = "folder"
)

// Insert text rules.
const (
	InsertAsSnippet = 4
)

// Suggestion is one completion item.
type Suggestion struct {
	Label               string                `json:"label"`
	Kind                CompletionItemKind    `json:"kind"`
	Detail              string                `json:"detail,omitempty"`
	Documentation       *MarkdownString       `json:"documentation,omitempty"`
	SortText            string                `json:"sortText,omitempty"`
	FilterText          string                `json:"filterText,omitempty"`
	Preselect           bool                  `json:"preselect,omitempty"`
	InsertText          string                `json:"insertText"`
	InsertTextRules     int                   `json:"insertTextRules,omitempty"`
	Range               *Range                `json:"range,omitempty"`
	CommitCharacters    []string              `json:"commitCharacters,omitempty"`
	AdditionalTextEdits []SingleEditOperation `json:"additionalTextEdits,omitempty"`
	Command             *Command              `json:"command,omitempty"`
	CacheID             *CacheID              `json:"cacheId,omitempty"`
}

// SuggestResult is the result of a completion request. CacheID names the
// cache entry to release once the main side is done with the suggestions.
type SuggestResult struct {
	Suggestions []Suggestion `json:"suggestions"`
	Incomplete  bool         `json:"incomplete,omitempty"`
	CacheID     int          `json:"cacheId,omitempty"`
}

// Completion trigger kinds.
const (
	TriggerInvoke = iota
	TriggerCharacter
	TriggerForIncompleteCompletions
)

// CompletionContext tells a provider how completion was triggered.
type CompletionContext struct {
	TriggerKind      int    `json:"triggerKind"`
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

// Location is a range inside a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// ReferenceContext controls a references request.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// CodeLens is a command shown inline above a range. Command is nil until the
// lens is resolved.
type CodeLens struct {
	Range   Range    `json:"range"`
	Command *Command `json:"command,omitempty"`
	CacheID *CacheID `json:"cacheId,omitempty"`
}

// CodeLensList is the result of a code lens request.
type CodeLensList struct {
	Lenses  []CodeLens `json:"lenses"`
	CacheID int        `json:"cacheId,omitempty"`
}

// Folding range kinds.
const (
	FoldingComment = "comment"
	FoldingImports = "imports"
	FoldingRegion  = "region"
)

// FoldingRange is a 1-based inclusive line span.
type FoldingRange struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Kind  string `json:"kind,omitempty"`
}

// FoldingContext is reserved for future options.
type FoldingContext struct{}

// Document highlight kinds.
const (
	HighlightText = iota
	HighlightRead
	HighlightWrite
)

// DocumentHighlight marks a range related to the symbol under the cursor.
type DocumentHighlight struct {
	Range Range `json:"range"`
	Kind  int   `json:"kind"`
}

// Color is an RGBA color with components in [0, 1].
type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
	Alpha float64 `json:"alpha"`
}

// ColorInformation is a color found in a document.
type ColorInformation struct {
	Range Range `json:"range"`
	Color Color `json:"color"`
}

// TextEdit replaces Range with Text. EOL optionally changes the document's
// line ending.
type TextEdit struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
	EOL   string `json:"eol,omitempty"`
}

// ColorPresentation is one way of writing a color.
type ColorPresentation struct {
	Label               string     `json:"label"`
	TextEdit            *TextEdit  `json:"textEdit,omitempty"`
	AdditionalTextEdits []TextEdit `json:"additionalTextEdits,omitempty"`
}

// Link is a document link. URL is empty until the link is resolved.
type Link struct {
	Range   Range    `json:"range"`
	URL     string   `json:"url,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
	CacheID *CacheID `json:"cacheId,omitempty"`
}

// LinksList is the result of a document links request.
type LinksList struct {
	Links   []Link `json:"links"`
	CacheID int    `json:"cacheId,omitempty"`
}

// FormattingOptions describe the preferred indentation.
type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}
