// Package textmodel is the line-array text buffer behind both the main
// side's authoritative models and the extension side's document mirrors.
//
// Positions and ranges are 1-based and columns count UTF-16 code units, the
// same coordinates the protocol carries.
package textmodel

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopware/exthost/internal/protocol"
)

var (
	// ErrVersionMismatch is returned by AcceptEvents for a batch that does not
	// produce the version right after the model's.
	ErrVersionMismatch = errors.New("textmodel: change batch does not follow the model version")
	// ErrOverlappingRanges is returned by EditOrder.
	ErrOverlappingRanges = errors.New("overlapping ranges are not allowed")
)

// DefaultWordPattern matches numbers and runs of non-separator characters.
var DefaultWordPattern = regexp.MustCompile("(-?\\d*\\.\\d\\w*)|([^`~!@#$%^&*()\\-=+\\[{\\]}\\\\|;:'\",.<>/?\\s]+)")

// Model is a versioned list of lines. It is not safe for concurrent use.
type Model struct {
	lines   []string
	eol     string
	version int
}

// New creates a model from lines already split.
func New(lines []string, eol string, version int) *Model {
	if len(lines) == 0 {
		lines = []string{""}
	}
	if eol == "" {
		eol = protocol.EOLLF
	}
	return &Model{lines: append([]string(nil), lines...), eol: eol, version: version}
}

// FromText creates a model from text. The line ending is detected from the
// text; defaultEOL is used when the text has none.
func FromText(text, defaultEOL string, version int) *Model {
	return New(SplitLines(text), DetectEOL(text, defaultEOL), version)
}

// SplitLines splits text on any line ending.
func SplitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	return append(lines, text[start:])
}

// DetectEOL returns the first line ending found in text, or fallback.
func DetectEOL(text, fallback string) string {
	i := strings.IndexAny(text, "\r\n")
	switch {
	case i < 0:
		if fallback == "" {
			return protocol.EOLLF
		}
		return fallback
	case text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n':
		return protocol.EOLCRLF
	default:
		return protocol.EOLLF
	}
}

// Version returns the model version.
func (m *Model) Version() int { return m.version }

// SetVersion sets the model version.
func (m *Model) SetVersion(v int) { m.version = v }

// EOL returns the line ending used by Text.
func (m *Model) EOL() string { return m.eol }

// SetEOL changes the line ending.
func (m *Model) SetEOL(eol string) {
	if eol != "" {
		m.eol = eol
	}
}

// LineCount returns the number of lines, at least one.
func (m *Model) LineCount() int { return len(m.lines) }

// Line returns the 1-based line n without its line ending.
func (m *Model) Line(n int) string {
	if n < 1 || n > len(m.lines) {
		return ""
	}
	return m.lines[n-1]
}

// Lines returns a copy of all lines.
func (m *Model) Lines() []string {
	return append([]string(nil), m.lines...)
}

// Text returns the full text joined with the model's line ending.
func (m *Model) Text() string {
	return strings.Join(m.lines, m.eol)
}

// LineMaxColumn returns the column just past the end of line n.
func (m *Model) LineMaxColumn(n int) int {
	return UTF16Len(m.Line(n)) + 1
}

// ValidatePosition clamps pos into the model.
func (m *Model) ValidatePosition(pos protocol.Position) protocol.Position {
	switch {
	case pos.LineNumber < 1:
		return protocol.Position{LineNumber: 1, Column: 1}
	case pos.LineNumber > len(m.lines):
		n := len(m.lines)
		return protocol.Position{LineNumber: n, Column: m.LineMaxColumn(n)}
	}
	col := pos.Column
	if col < 1 {
		col = 1
	}
	if maxCol := m.LineMaxColumn(pos.LineNumber); col > maxCol {
		col = maxCol
	}
	return protocol.Position{LineNumber: pos.LineNumber, Column: col}
}

// ValidateRange clamps r into the model and orders its ends.
func (m *Model) ValidateRange(r protocol.Range) protocol.Range {
	start := m.ValidatePosition(r.Start())
	end := m.ValidatePosition(r.End())
	if Before(end, start) {
		start, end = end, start
	}
	return protocol.Range{
		StartLineNumber: start.LineNumber,
		StartColumn:     start.Column,
		EndLineNumber:   end.LineNumber,
		EndColumn:       end.Column,
	}
}

// ValueInRange returns the text covered by r, joining lines with the model's
// line ending.
func (m *Model) ValueInRange(r protocol.Range) string {
	r = m.ValidateRange(r)
	first := m.lines[r.StartLineNumber-1]
	if r.StartLineNumber == r.EndLineNumber {
		return first[ByteOffset(first, r.StartColumn):ByteOffset(first, r.EndColumn)]
	}

	var b strings.Builder
	b.WriteString(first[ByteOffset(first, r.StartColumn):])
	for n := r.StartLineNumber + 1; n < r.EndLineNumber; n++ {
		b.WriteString(m.eol)
		b.WriteString(m.lines[n-1])
	}
	last := m.lines[r.EndLineNumber-1]
	b.WriteString(m.eol)
	b.WriteString(last[:ByteOffset(last, r.EndColumn)])
	return b.String()
}

// OffsetAt returns the offset of pos in UTF-16 code units from the start of
// the text.
func (m *Model) OffsetAt(pos protocol.Position) int {
	pos = m.ValidatePosition(pos)
	offset := 0
	eolLen := len(m.eol)
	for n := 1; n < pos.LineNumber; n++ {
		offset += UTF16Len(m.lines[n-1]) + eolLen
	}
	return offset + pos.Column - 1
}

// PositionAt is the inverse of OffsetAt. Offsets outside the text are
// clamped.
func (m *Model) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	eolLen := len(m.eol)
	for i, line := range m.lines {
		l := UTF16Len(line)
		if offset <= l || i == len(m.lines)-1 {
			return m.ValidatePosition(protocol.Position{LineNumber: i + 1, Column: offset + 1})
		}
		offset -= l + eolLen
		if offset < 0 {
			// Inside the line ending of line i.
			return protocol.Position{LineNumber: i + 1, Column: l + 1}
		}
	}
	return protocol.Position{LineNumber: 1, Column: 1}
}

// WordRangeAt returns the range of the word at pos. pattern defaults to
// DefaultWordPattern.
func (m *Model) WordRangeAt(pos protocol.Position, pattern *regexp.Regexp) (protocol.Range, bool) {
	if pattern == nil {
		pattern = DefaultWordPattern
	}
	pos = m.ValidatePosition(pos)
	line := m.lines[pos.LineNumber-1]
	for _, loc := range pattern.FindAllStringIndex(line, -1) {
		start := UTF16Len(line[:loc[0]]) + 1
		end := UTF16Len(line[:loc[1]]) + 1
		if start <= pos.Column && pos.Column <= end {
			return protocol.Range{
				StartLineNumber: pos.LineNumber,
				StartColumn:     start,
				EndLineNumber:   pos.LineNumber,
				EndColumn:       end,
			}, true
		}
	}
	return protocol.Range{}, false
}

// ApplyChange replaces the range of c with its text.
func (m *Model) ApplyChange(c protocol.ModelContentChange) {
	r := m.ValidateRange(c.Range)
	first := m.lines[r.StartLineNumber-1]
	last := m.lines[r.EndLineNumber-1]

	text := first[:ByteOffset(first, r.StartColumn)] + c.Text + last[ByteOffset(last, r.EndColumn):]
	inserted := SplitLines(text)

	lines := make([]string, 0, len(m.lines)-(r.EndLineNumber-r.StartLineNumber)+len(inserted)-1)
	lines = append(lines, m.lines[:r.StartLineNumber-1]...)
	lines = append(lines, inserted...)
	lines = append(lines, m.lines[r.EndLineNumber:]...)
	m.lines = lines
}

// AcceptEvents applies a change batch and moves the model to the batch's
// version. Batches must arrive in order: anything but version+1 is rejected
// without touching the model.
func (m *Model) AcceptEvents(e protocol.ModelChangedEvent) error {
	if e.VersionID != m.version+1 {
		return fmt.Errorf("%w: have version %d, got %d", ErrVersionMismatch, m.version, e.VersionID)
	}
	m.SetEOL(e.EOL)
	for _, c := range e.Changes {
		m.ApplyChange(c)
	}
	m.version = e.VersionID
	return nil
}

// EditOrder sorts the ranges of one edit batch by start, then end, then
// position in the batch, and rejects a range starting before the previous
// one ends. Touching ranges are fine. Applying the edits in reverse order
// keeps the remaining ranges valid and leaves inserts at one position in
// batch order.
func EditOrder(ranges []protocol.Range) ([]int, error) {
	order := make([]int, len(ranges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := ranges[order[a]], ranges[order[b]]
		switch {
		case ra.Start() != rb.Start():
			return Before(ra.Start(), rb.Start())
		case ra.End() != rb.End():
			return Before(ra.End(), rb.End())
		}
		return order[a] < order[b]
	})
	for i := 1; i < len(order); i++ {
		if Before(ranges[order[i]].Start(), ranges[order[i-1]].End()) {
			return nil, ErrOverlappingRanges
		}
	}
	return order, nil
}

// Before reports whether a comes strictly before b.
func Before(a, b protocol.Position) bool {
	return a.LineNumber < b.LineNumber || (a.LineNumber == b.LineNumber && a.Column < b.Column)
}
