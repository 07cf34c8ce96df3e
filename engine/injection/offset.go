package injection

import (
	"unicode/utf8"

	"github.com/tsls/treesitter-ls/engine/position"
)

// Offset is the four signed (row, column) deltas applied to a content
// node's range before it becomes a layer's effective range. The zero value
// is the identity offset.
type Offset struct {
	StartRow, StartColumn int
	EndRow, EndColumn     int
}

// IsZero reports whether the offset is the identity offset.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

// Apply shifts a byte range in (row, column) space by o and converts the
// result back to bytes, using m (built over the full host text) to walk
// lines. Row offsets move the anchor to a different line before the column
// offset is applied on that line; columns saturate at 0.
func Apply(m *position.Mapper, start, end int, o Offset) (newStart, newEnd int) {
	if o.IsZero() {
		return start, end
	}
	newStart = applyToPoint(m, start, o.StartRow, o.StartColumn)
	newEnd = applyToPoint(m, end, o.EndRow, o.EndColumn)
	return newStart, newEnd
}

// applyToPoint moves byte offset b by rowOffset lines (can be negative) and
// then shifts its original byte column by columnOffset on the resulting line.
func applyToPoint(m *position.Mapper, b int, rowOffset, columnOffset int) int {
	if rowOffset == 0 && columnOffset == 0 {
		return b
	}
	text := m.Text()
	line := lineOf(m, b)
	line += rowOffset
	if line < 0 {
		line = 0
	}
	lineStart, lineEnd := lineBounds(m, line)
	col := int(m.ByteToPoint(b).Column) + columnOffset
	if col < 0 {
		col = 0
	}
	target := lineStart + col
	if target > lineEnd {
		target = lineEnd
	}
	// Keep target on a rune boundary.
	for target > lineStart && target < len(text) && !utf8.RuneStart(text[target]) {
		target--
	}
	return target
}

func lineOf(m *position.Mapper, b int) int {
	return int(m.ByteToPoint(b).Row)
}

func lineBounds(m *position.Mapper, line int) (start, end int) {
	// ByteToPosition/PositionToByte only expose line-relative operations
	// through Pos; reconstruct bounds via a large character probe clamped
	// by PositionToByte's own end-of-line clamp.
	start = m.PositionToByte(position.Pos{Line: uint32(line), Character: 0})
	end = m.PositionToByte(position.Pos{Line: uint32(line), Character: 1 << 30})
	return start, end
}
