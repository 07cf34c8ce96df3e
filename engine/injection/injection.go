package injection

import (
	"sort"

	"github.com/tsls/treesitter-ls/engine/edit"
	"github.com/tsls/treesitter-ls/engine/position"
)

// Capture is one query capture inside a Match, abstracted away from the
// concrete tree-sitter query/cursor types so this package can be exercised
// without a live grammar (engine/layer adapts *sitter.QueryMatch into this
// shape when driving the resolver against a real parse tree).
type Capture struct {
	Name       string
	StartByte  int
	EndByte    int
	Text       string // only populated for @injection.language captures
}

// Match is one injection-query match: its pattern index (for property
// lookups and first-match-wins tie-breaking) plus its captures.
type Match struct {
	PatternIndex int
	Captures     []Capture
	// StaticLanguage is the value of a `#set! injection.language` property
	// for this pattern, if any.
	StaticLanguage string
	// PropOffset is the `#offset!` directive's four integers, if present.
	PropOffset   Offset
	HasPropOffset bool
}

// Region is one resolved injection occurrence, prior to region-ID
// assignment, in host-document byte coordinates.
type Region struct {
	Language     string
	ContentStart int
	ContentEnd   int // raw content-node range, before offset
	Start, End   int // effective range, after offset is applied
	PatternIndex int
}

// Resolve walks matches in document order and returns one Region per match
// that yields an @injection.content capture with a resolvable language. The
// first match (by pattern index) covering a given content range wins if
// more than one pattern matches the same content node.
func Resolve(m *position.Mapper, matches []Match) []Region {
	var out []Region
	seen := map[[2]int]bool{}
	// Matches are expected in node/document order already; stable-sort by
	// content start byte then pattern index so "first pattern wins" ties
	// break deterministically regardless of query-engine iteration order.
	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		si := contentRange(sorted[i])
		sj := contentRange(sorted[j])
		if si[0] != sj[0] {
			return si[0] < sj[0]
		}
		return sorted[i].PatternIndex < sorted[j].PatternIndex
	})

	for _, mt := range sorted {
		content, ok := contentCapture(mt)
		if !ok {
			continue
		}
		key := [2]int{content.StartByte, content.EndByte}
		if seen[key] {
			continue
		}
		lang, ok := resolveLanguage(mt)
		if !ok {
			continue
		}
		off := Offset{}
		if mt.HasPropOffset {
			off = mt.PropOffset
		}
		start, end := Apply(m, content.StartByte, content.EndByte, off)
		if end <= start {
			continue
		}
		seen[key] = true
		out = append(out, Region{
			Language:     lang,
			ContentStart: content.StartByte,
			ContentEnd:   content.EndByte,
			Start:        start,
			End:          end,
			PatternIndex: mt.PatternIndex,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func contentRange(mt Match) [2]int {
	if c, ok := contentCapture(mt); ok {
		return [2]int{c.StartByte, c.EndByte}
	}
	return [2]int{1 << 62, 1 << 62}
}

func contentCapture(mt Match) (Capture, bool) {
	for _, c := range mt.Captures {
		if c.Name == "injection.content" {
			return c, true
		}
	}
	return Capture{}, false
}

// resolveLanguage prefers a static `#set! injection.language` property, then
// falls back to a dynamic `@injection.language` capture's text.
func resolveLanguage(mt Match) (string, bool) {
	if mt.StaticLanguage != "" {
		return mt.StaticLanguage, true
	}
	for _, c := range mt.Captures {
		if c.Name == "injection.language" {
			return c.Text, true
		}
	}
	return "", false
}

// ToRanges converts resolved regions' effective ranges into edit.Range for
// hand-off to the Language Layer Tree / Edit Transformer.
func ToRanges(regions []Region) []edit.Range {
	out := make([]edit.Range, len(regions))
	for i, r := range regions {
		out[i] = edit.Range{Start: r.Start, End: r.End}
	}
	return out
}
