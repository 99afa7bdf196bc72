package textmodel

import (
	"unicode/utf16"
	"unicode/utf8"
)

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16RuneLen(r)
	}
	return n
}

// ByteOffset converts a 1-based UTF-16 column into a byte offset in line.
// Columns past the end map to len(line); a column inside a surrogate pair
// maps to the start of that rune.
func ByteOffset(line string, column int) int {
	units := column - 1
	if units <= 0 {
		return 0
	}
	for i := 0; i < len(line); {
		r, w := utf8.DecodeRuneInString(line[i:])
		units -= utf16RuneLen(r)
		if units < 0 {
			return i
		}
		if units == 0 {
			return i + w
		}
		i += w
	}
	return len(line)
}

func utf16RuneLen(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// Invalid runes decode as U+FFFD, one unit.
	return 1
}
