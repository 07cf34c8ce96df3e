// Package tokens implements the Incremental Semantic Tokenization
// Pipeline: per-layer raw token collection, sort/dedup/delta-encoding, a
// fingerprint-keyed cache, and LSP delta computation with the line-shift
// guard.
package tokens

// Raw is one raw token in host coordinates, as produced by one layer's
// highlight query, before sorting, de-duplication, or delta-encoding.
type Raw struct {
	Line, Column int
	Length       int
	TokenType    uint32
	Modifiers    uint32
	Depth        int
}

// Encoded is one LSP semantic token: five u32 fields, already
// delta-encoded relative to the previous token in the sequence (or the
// document start, for the first token).
type Encoded struct {
	DeltaLine      uint32
	DeltaStart     uint32
	Length         uint32
	TokenType      uint32
	TokenModifiers uint32
}

// Flatten packs a sequence of Encoded tokens into the u32 array the LSP
// wire format expects.
func Flatten(tokens []Encoded) []uint32 {
	out := make([]uint32, 0, len(tokens)*5)
	for _, t := range tokens {
		out = append(out, t.DeltaLine, t.DeltaStart, t.Length, t.TokenType, t.TokenModifiers)
	}
	return out
}

// Unflatten is the inverse of Flatten, used when decoding a previously
// cached sequence back into per-token delta form (e.g. for range
// filtering, which needs absolute positions).
func Unflatten(data []uint32) []Encoded {
	out := make([]Encoded, 0, len(data)/5)
	for i := 0; i+4 < len(data); i += 5 {
		out = append(out, Encoded{
			DeltaLine:      data[i],
			DeltaStart:     data[i+1],
			Length:         data[i+2],
			TokenType:      data[i+3],
			TokenModifiers: data[i+4],
		})
	}
	return out
}

// Absolute is a token with its position fully resolved (not delta-encoded
// against a predecessor), used internally between sort/dedup and the
// final delta-encoding pass, and for range filtering.
type Absolute struct {
	Line, Column int
	Length       int
	TokenType    uint32
	Modifiers    uint32
}

// SortAndDedup drops zero-length tokens, sorts by (line, column, -depth),
// and keeps only the first (deepest) token at each (line, column).
func SortAndDedup(raw []Raw) []Absolute {
	filtered := make([]Raw, 0, len(raw))
	for _, r := range raw {
		if r.Length > 0 {
			filtered = append(filtered, r)
		}
	}
	sortRaw(filtered)

	out := make([]Absolute, 0, len(filtered))
	var lastLine, lastCol int
	has := false
	for _, r := range filtered {
		if has && r.Line == lastLine && r.Column == lastCol {
			continue
		}
		out = append(out, Absolute{
			Line: r.Line, Column: r.Column, Length: r.Length,
			TokenType: r.TokenType, Modifiers: r.Modifiers,
		})
		lastLine, lastCol, has = r.Line, r.Column, true
	}
	return out
}

func sortRaw(raw []Raw) {
	// Insertion-stable sort by (line, column, -depth); document sizes keep
	// token counts modest enough that a simple sort is appropriate, and
	// stability preserves query-emission order for genuine ties.
	for i := 1; i < len(raw); i++ {
		j := i
		for j > 0 && less(raw[j], raw[j-1]) {
			raw[j], raw[j-1] = raw[j-1], raw[j]
			j--
		}
	}
}

func less(a, b Raw) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	return a.Depth > b.Depth // deeper first
}

// Encode delta-encodes a sorted, de-duplicated absolute token sequence
// relative to document start.
func Encode(abs []Absolute) []Encoded {
	out := make([]Encoded, len(abs))
	prevLine, prevCol := 0, 0
	for i, a := range abs {
		deltaLine := a.Line - prevLine
		deltaStart := a.Column
		if deltaLine == 0 {
			deltaStart = a.Column - prevCol
		}
		out[i] = Encoded{
			DeltaLine:      uint32(deltaLine),
			DeltaStart:     uint32(deltaStart),
			Length:         uint32(a.Length),
			TokenType:      a.TokenType,
			TokenModifiers: a.Modifiers,
		}
		prevLine, prevCol = a.Line, a.Column
	}
	return out
}

// FilterRange keeps only absolute tokens strictly inside [startLine,
// startCol) .. (endLine, endCol], per the range-request's strict inclusion
// semantics: a token fully before or after the range is excluded.
func FilterRange(abs []Absolute, startLine, startCol, endLine, endCol int) []Absolute {
	var out []Absolute
	for _, a := range abs {
		tokenEndCol := a.Column + a.Length
		before := a.Line < startLine || (a.Line == startLine && tokenEndCol <= startCol)
		after := a.Line > endLine || (a.Line == endLine && a.Column >= endCol)
		if !before && !after {
			out = append(out, a)
		}
	}
	return out
}
