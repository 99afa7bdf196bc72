// Package types holds the values extensions work with. Unlike the protocol,
// positions here are 0-based.
package types

// Position is a 0-based line and character. Characters count UTF-16 code
// units.
type Position struct {
	Line      int
	Character int
}

// NewPosition returns the position at line and character.
func NewPosition(line, character int) Position {
	return Position{Line: line, Character: character}
}

// IsBefore reports whether p comes strictly before other.
func (p Position) IsBefore(other Position) bool {
	return p.Line < other.Line || (p.Line == other.Line && p.Character < other.Character)
}

// IsAfter reports whether p comes strictly after other.
func (p Position) IsAfter(other Position) bool {
	return other.IsBefore(p)
}

// Compare returns -1, 0 or 1.
func (p Position) Compare(other Position) int {
	switch {
	case p.IsBefore(other):
		return -1
	case other.IsBefore(p):
		return 1
	default:
		return 0
	}
}

// Translate returns p moved by the given deltas.
func (p Position) Translate(lineDelta, characterDelta int) Position {
	return Position{Line: p.Line + lineDelta, Character: p.Character + characterDelta}
}

// Range is an ordered pair of positions. The end is exclusive.
type Range struct {
	Start Position
	End   Position
}

// NewRange returns the range between two positions, ordering them.
func NewRange(start, end Position) Range {
	if end.IsBefore(start) {
		start, end = end, start
	}
	return Range{Start: start, End: end}
}

// NewRangeOf returns the range between (startLine, startCharacter) and
// (endLine, endCharacter).
func NewRangeOf(startLine, startCharacter, endLine, endCharacter int) Range {
	return NewRange(NewPosition(startLine, startCharacter), NewPosition(endLine, endCharacter))
}

// IsEmpty reports whether the range covers nothing.
func (r Range) IsEmpty() bool { return r.Start == r.End }

// IsSingleLine reports whether the range starts and ends on the same line.
func (r Range) IsSingleLine() bool { return r.Start.Line == r.End.Line }

// Contains reports whether p lies within r, ends included.
func (r Range) Contains(p Position) bool {
	return !p.IsBefore(r.Start) && !r.End.IsBefore(p)
}

// Selection is a range with a direction. The anchor is where the selection
// started, the active position is where the cursor is.
type Selection struct {
	Anchor Position
	Active Position
}

// NewSelection returns the selection from anchor to active.
func NewSelection(anchor, active Position) Selection {
	return Selection{Anchor: anchor, Active: active}
}

// Range returns the ordered range covered by s.
func (s Selection) Range() Range { return NewRange(s.Anchor, s.Active) }

// IsReversed reports whether the cursor sits before the anchor.
func (s Selection) IsReversed() bool { return s.Active.IsBefore(s.Anchor) }

// IsEmpty reports whether the selection is a bare cursor.
func (s Selection) IsEmpty() bool { return s.Anchor == s.Active }

// EndOfLine is a line ending.
type EndOfLine int

const (
	LF EndOfLine = iota + 1
	CRLF
)

// Location is a range in a document.
type Location struct {
	URI   string
	Range Range
}
