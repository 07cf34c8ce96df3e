package layer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tslua "github.com/tree-sitter-grammars/tree-sitter-lua/bindings/go"
	tsmarkdown "github.com/tree-sitter-grammars/tree-sitter-markdown/bindings/go"
	tsregex "github.com/tree-sitter-grammars/tree-sitter-regex/bindings/go"
	tsrust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

// builtinLanguages is the fixed set of grammars bundled with the server; a
// host config's "language install" action can add more at runtime via
// LanguageRegistry.Register.
var builtinLanguages = []struct {
	name     string
	language func() *sitter.Language
}{
	{"rust", func() *sitter.Language { return sitter.NewLanguage(tsrust.Language()) }},
	{"lua", func() *sitter.Language { return sitter.NewLanguage(tslua.Language()) }},
	{"markdown", func() *sitter.Language { return sitter.NewLanguage(tsmarkdown.Language()) }},
	{"regex", func() *sitter.Language { return sitter.NewLanguage(tsregex.Language()) }},
}

// RegisterBuiltins loads the bundled grammars into registry, using the
// provided highlight/injection query source for each language (typically
// read from the grammar's own queries/ directory at startup). Missing
// query sources for a language are tolerated: that language simply never
// produces tokens or injections, per §4.1's "acquire returns none iff the
// language is not registered" — a registered-but-query-less grammar can
// still host nested regions parsed from others.
func RegisterBuiltins(registry *LanguageRegistry, queries map[string]LanguageQueries) error {
	for _, b := range builtinLanguages {
		lang := b.language()
		g := &Grammar{Name: b.name, Language: lang}
		if q, ok := queries[b.name]; ok {
			if q.Highlights != "" {
				hq, err := sitter.NewQuery(lang, q.Highlights)
				if err == nil {
					g.HighlightQuery = hq
				}
			}
			if q.Injections != "" {
				iq, err := sitter.NewQuery(lang, q.Injections)
				if err == nil {
					g.InjectionQuery = iq
				}
			}
		}
		if err := registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// LanguageQueries bundles the raw query-file contents for one language.
type LanguageQueries struct {
	Highlights string
	Injections string
}
