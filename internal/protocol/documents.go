// Package protocol defines what crosses the boundary between the main side
// and the extension side: the identifiers, their methods and the data
// transfer objects passed as arguments.
//
// All positions on the wire are 1-based (line numbers and columns), the way
// the main side's editor models count.
package protocol

// Position is a 1-based line/column pair. Columns count UTF-16 code units.
type Position struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// Range is a 1-based, end-exclusive span.
type Range struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Start returns the start position.
func (r Range) Start() Position {
	return Position{LineNumber: r.StartLineNumber, Column: r.StartColumn}
}

// End returns the end position.
func (r Range) End() Position {
	return Position{LineNumber: r.EndLineNumber, Column: r.EndColumn}
}

// Selection is a range with a direction: the selection starts at the anchor
// and the cursor sits at the position.
type Selection struct {
	SelectionStartLineNumber int `json:"selectionStartLineNumber"`
	SelectionStartColumn     int `json:"selectionStartColumn"`
	PositionLineNumber       int `json:"positionLineNumber"`
	PositionColumn           int `json:"positionColumn"`
}

// Line endings as sent on the wire.
const (
	EOLLF   = "\n"
	EOLCRLF = "\r\n"
)

// ModelAddedData describes a document the extension side must start mirroring.
type ModelAddedData struct {
	URI        string   `json:"uri"`
	VersionID  int      `json:"versionId"`
	Lines      []string `json:"lines"`
	EOL        string   `json:"eol"`
	LanguageID string   `json:"languageId"`
	IsDirty    bool     `json:"isDirty"`
}

// ModelContentChange replaces Range with Text. RangeLength is the length of
// the replaced text in UTF-16 code units.
type ModelContentChange struct {
	Range       Range  `json:"range"`
	RangeLength int    `json:"rangeLength"`
	Text        string `json:"text"`
}

// ModelChangedEvent is one batch of changes that took a model to VersionID.
type ModelChangedEvent struct {
	Changes   []ModelContentChange `json:"changes"`
	EOL       string               `json:"eol"`
	VersionID int                  `json:"versionId"`
}

// CreateDocumentOptions are the options of an untitled document.
type CreateDocumentOptions struct {
	Language string `json:"language,omitempty"`
	Content  string `json:"content,omitempty"`
}
