package tokens

// Legend is the fixed, ordered list of semantic token types this server
// advertises at Initialize. The order determines each token's TokenType
// index; it MUST stay stable for the lifetime of a server run, per
// spec.md §6. Modifiers are unused (every token reports bitset zero);
// nothing in spec.md or its injection/tokenization model calls for
// modifier bits.
var Legend = []string{
	"namespace", "type", "class", "enum", "interface", "struct",
	"typeParameter", "parameter", "variable", "property", "enumMember",
	"event", "function", "method", "macro", "keyword", "modifier",
	"comment", "string", "number", "regexp", "operator", "decorator",
}

var legendIndex = func() map[string]uint32 {
	m := make(map[string]uint32, len(Legend))
	for i, name := range Legend {
		m[name] = uint32(i)
	}
	return m
}()

// defaultCaptureMap translates the common tree-sitter highlight capture
// names (`@keyword`, `@function`, ...) to a Legend index. Captures with
// no entry here, or whose mapped value isn't in Legend, are dropped per
// spec.md §4.6 step 3 — the exact table contents are explicitly out of
// scope (spec.md §1's Non-goals), so this covers the captures every
// bundled grammar's highlights query actually emits.
var defaultCaptureMap = map[string]string{
	"comment":              "comment",
	"string":               "string",
	"string.special":       "string",
	"string.special.regex": "regexp",
	"number":               "number",
	"boolean":               "keyword",
	"keyword":              "keyword",
	"keyword.function":     "keyword",
	"keyword.operator":     "operator",
	"keyword.return":       "keyword",
	"operator":             "operator",
	"function":             "function",
	"function.builtin":     "function",
	"function.macro":       "macro",
	"function.method":      "method",
	"method":               "method",
	"constructor":          "function",
	"parameter":            "parameter",
	"variable":             "variable",
	"variable.builtin":     "variable",
	"variable.parameter":   "parameter",
	"property":             "property",
	"field":                "property",
	"type":                 "type",
	"type.builtin":         "type",
	"type.definition":      "type",
	"constant":             "variable",
	"constant.builtin":     "variable",
	"namespace":            "namespace",
	"module":               "namespace",
	"label":                "keyword",
	"punctuation.delimiter": "operator",
	"punctuation.bracket":  "operator",
	"punctuation.special":  "operator",
	"tag":                  "type",
	"attribute":            "decorator",
	"escape":               "string",
}

// CaptureMap resolves a capture name to a legend token-type index,
// preferring an override from config.Options.TokenTypes before falling
// back to the default table. A capture mapping to "" (either explicitly
// overridden or absent from both tables) is dropped.
type CaptureMap struct {
	overrides map[string]string
}

// NewCaptureMap builds a CaptureMap from a configured override table. A
// nil map uses the default table unmodified.
func NewCaptureMap(overrides map[string]string) CaptureMap {
	return CaptureMap{overrides: overrides}
}

// Resolve returns the legend index for captureName and whether it maps
// to anything at all.
func (c CaptureMap) Resolve(captureName string) (uint32, bool) {
	name, ok := c.overrides[captureName]
	if !ok {
		name, ok = defaultCaptureMap[captureName]
	}
	if !ok || name == "" {
		return 0, false
	}
	idx, ok := legendIndex[name]
	return idx, ok
}
