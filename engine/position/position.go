// Package position converts between byte offsets, LSP (line, UTF-16
// character) positions, and tree-sitter (row, byte-column) points for a
// single document's text.
package position

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Point is a tree-sitter-style row/byte-column pair.
type Point struct {
	Row    uint32
	Column uint32
}

// Pos is an LSP position: zero-based line, UTF-16 code-unit character offset.
type Pos struct {
	Line      uint32
	Character uint32
}

// Mapper maps between byte offsets and line-oriented positions for a fixed
// text snapshot. A Mapper is immutable; a new one is built whenever the
// underlying text changes.
type Mapper struct {
	text       string
	lineStarts []int // byte offset of the start of each line
}

// New builds a Mapper over text, precomputing line start offsets.
func New(text string) *Mapper {
	return &Mapper{text: text, lineStarts: computeLineStarts(text)}
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Text returns the mapper's underlying text snapshot.
func (m *Mapper) Text() string { return m.text }

// LineCount returns the number of lines in the text.
func (m *Mapper) LineCount() int { return len(m.lineStarts) }

func (m *Mapper) lineRange(line int) (start, end int) {
	if line < 0 {
		line = 0
	}
	if line >= len(m.lineStarts) {
		return len(m.text), len(m.text)
	}
	start = m.lineStarts[line]
	if line+1 < len(m.lineStarts) {
		end = m.lineStarts[line+1]
	} else {
		end = len(m.text)
	}
	return start, end
}

// lineEndTrimmed returns the byte offset of the end of the line's content,
// excluding the trailing line terminator (\r\n or \n).
func (m *Mapper) lineEndTrimmed(line int) int {
	start, end := m.lineRange(line)
	content := m.text[start:end]
	if n := len(content); n > 0 && content[n-1] == '\n' {
		content = content[:n-1]
	}
	if n := len(content); n > 0 && content[n-1] == '\r' {
		content = content[:n-1]
	}
	return start + len(content)
}

// ByteToPosition converts a byte offset into an LSP position. Offsets past
// the end of the text clamp to the final position.
func (m *Mapper) ByteToPosition(b int) Pos {
	if b < 0 {
		b = 0
	}
	if b > len(m.text) {
		b = len(m.text)
	}
	line := sort.Search(len(m.lineStarts), func(i int) bool {
		return m.lineStarts[i] > b
	}) - 1
	if line < 0 {
		line = 0
	}
	lineStart, _ := m.lineRange(line)
	character := utf16Length(m.text[lineStart:b])
	return Pos{Line: uint32(line), Character: uint32(character)}
}

// PositionToByte converts an LSP position into a byte offset. A character
// column past the end of the line clamps to the line's trimmed end.
func (m *Mapper) PositionToByte(p Pos) int {
	line := int(p.Line)
	start, _ := m.lineRange(line)
	end := m.lineEndTrimmed(line)
	remaining := int(p.Character)
	i := start
	for i < end && remaining > 0 {
		r, size := utf8.DecodeRuneInString(m.text[i:end])
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		if remaining < units {
			// Position lands inside a surrogate pair; clamp to rune start.
			break
		}
		remaining -= units
		i += size
	}
	return i
}

// PositionToPoint converts an LSP position into a tree-sitter Point, whose
// column is a byte offset within the line rather than a UTF-16 count.
func (m *Mapper) PositionToPoint(p Pos) Point {
	b := m.PositionToByte(p)
	lineStart, _ := m.lineRange(int(p.Line))
	return Point{Row: p.Line, Column: uint32(b - lineStart)}
}

// ByteToPoint converts a byte offset into a tree-sitter Point.
func (m *Mapper) ByteToPoint(b int) Point {
	if b < 0 {
		b = 0
	}
	if b > len(m.text) {
		b = len(m.text)
	}
	line := sort.Search(len(m.lineStarts), func(i int) bool {
		return m.lineStarts[i] > b
	}) - 1
	if line < 0 {
		line = 0
	}
	lineStart, _ := m.lineRange(line)
	return Point{Row: uint32(line), Column: uint32(b - lineStart)}
}

// utf16Length returns the number of UTF-16 code units needed to represent s.
func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Utf16Len is exported for callers (e.g. the tokenizer) that need the
// UTF-16 length of an arbitrary substring without building a Mapper.
func Utf16Len(s string) int { return utf16Length(s) }

// EncodeUTF16 is a thin re-export used by callers that need to reason about
// surrogate pairs directly (kept for symmetry with utf16.Encode/Decode).
func EncodeUTF16(s string) []uint16 { return utf16.Encode([]rune(s)) }
