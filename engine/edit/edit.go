// Package edit rewrites a single document content-change into per-layer
// tree-sitter edits and revised range lists, per the range-adjustment table
// in the injection layer engine's component design.
package edit

import "github.com/tsls/treesitter-ls/engine/position"

// Range is a half-open byte range [Start, End) in host-document coordinates.
type Range struct {
	Start, End int
}

// Change is a single LSP content change already resolved to byte offsets:
// replace [Start, End) with NewText.
type Change struct {
	Start, End int
	NewText    string
}

// Delta returns the byte-length change this edit introduces.
func (c Change) Delta() int { return len(c.NewText) - (c.End - c.Start) }

// InputEdit is the tree-sitter-shaped edit descriptor: byte offsets plus
// the corresponding (row, byte-column) points, required so grammars can
// re-parse incrementally.
type InputEdit struct {
	StartByte       int
	OldEndByte      int
	NewEndByte      int
	StartPoint      position.Point
	OldEndPoint     position.Point
	NewEndPoint     position.Point
}

// HostEdit builds the tree-sitter InputEdit for the host document given the
// mapper over the text *before* the edit is applied.
func HostEdit(before *position.Mapper, c Change, newEndPoint position.Point) InputEdit {
	return InputEdit{
		StartByte:   c.Start,
		OldEndByte:  c.End,
		NewEndByte:  c.Start + len(c.NewText),
		StartPoint:  before.ByteToPoint(c.Start),
		OldEndPoint: before.ByteToPoint(c.End),
		NewEndPoint: newEndPoint,
	}
}

// AdjustRange applies the range-adjustment rules to a single layer range
// for one change. ok is false when the range must be dropped (the edit
// consumed it entirely, or it collapsed to zero width).
func AdjustRange(r Range, c Change) (out Range, ok bool) {
	es, ee := c.Start, c.End
	delta := c.Delta()
	eeNew := es + len(c.NewText)

	switch {
	case r.End <= es:
		// Entirely before: unchanged.
		out = r
	case r.Start >= ee:
		// Entirely after: shift by delta.
		out = Range{Start: r.Start + delta, End: r.End + delta}
	case es < r.Start && ee >= r.End:
		// Edit contains range: removed.
		return Range{}, false
	case es < r.Start && ee <= r.End:
		// Edit prefix-overlaps the range.
		out = Range{Start: eeNew, End: r.End + delta}
	case es >= r.Start && ee <= r.End:
		// Edit entirely inside the range.
		out = Range{Start: r.Start, End: r.End + delta}
	case r.Start <= es && es < r.End && ee > r.End:
		// Edit suffix-overlaps the range.
		out = Range{Start: r.Start, End: es + (eeNew - es)}
	default:
		// Defensive fallback: treat as contains (should be unreachable —
		// the cases above are exhaustive over the six documented relations).
		return Range{}, false
	}
	if out.End <= out.Start {
		return Range{}, false
	}
	return out, true
}

// AdjustRanges applies AdjustRange to every range in a layer's range list,
// dropping any that collapse, and returns the revised list.
func AdjustRanges(ranges []Range, c Change) []Range {
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if adj, ok := AdjustRange(r, c); ok {
			out = append(out, adj)
		}
	}
	return out
}

// Touches reports whether c touches any range in ranges — i.e. whether a
// layer needs its ranges recomputed and, if its content changed, re-parsed.
func Touches(ranges []Range, c Change) bool {
	for _, r := range ranges {
		if c.Start < r.End && c.End > r.Start {
			return true
		}
		// Insertions exactly at a boundary also touch the range, since an
		// edit at r.End with zero width can still be the prefix/suffix
		// boundary case.
		if c.Start == c.End && c.Start >= r.Start && c.Start <= r.End {
			return true
		}
	}
	return false
}

// TranslateToLayer translates a host-coordinate change into a layer's
// compressed coordinate space, given the layer's ranges *before* the edit.
// ok is false if the change does not touch the layer at all.
func TranslateToLayer(ranges []Range, c Change) (layerStart, layerEnd int, ok bool) {
	compressed := 0
	found := false
	for _, r := range ranges {
		if c.Start >= r.Start && c.Start <= r.End && !found {
			layerStart = compressed + (c.Start - r.Start)
			found = true
		}
		if c.End >= r.Start && c.End <= r.End {
			layerEnd = compressed + (c.End - r.Start)
			if found {
				return layerStart, layerEnd, true
			}
		}
		compressed += r.End - r.Start
	}
	return 0, 0, false
}
