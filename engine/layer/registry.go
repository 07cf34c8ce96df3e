// Package layer implements the Parser Pool and the Language Layer Tree: the
// host tree plus its tree of injected sub-trees, each layer queryable for
// further injections, tokens, and position mapping.
package layer

import (
	"fmt"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Grammar bundles everything the Language Layer Tree needs for one
// language: its tree-sitter Language, its highlight query (for
// tokenization) and its injection query (for discovering nested regions).
type Grammar struct {
	Name            string
	Language        *sitter.Language
	HighlightQuery  *sitter.Query
	InjectionQuery  *sitter.Query
}

// LanguageRegistry is the one process-wide piece of global mutable state
// named by the design notes: initialized on first configuration, read by
// every document, mutated only by an explicit "install" action. It is
// guarded by an RW lock; a panic inside a critical section is recovered so
// a single bad grammar load cannot corrupt the registry for the rest of
// the process (Go has no mutex-poisoning primitive to emulate otherwise).
type LanguageRegistry struct {
	mu        sync.RWMutex
	grammars  map[string]*Grammar
}

// NewLanguageRegistry constructs an empty registry.
func NewLanguageRegistry() *LanguageRegistry {
	return &LanguageRegistry{grammars: map[string]*Grammar{}}
}

// Register installs or replaces a grammar under its name.
func (r *LanguageRegistry) Register(g *Grammar) (err error) {
	defer recoverInto(&err, "language registry: register panicked")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammars[g.Name] = g
	return nil
}

// Lookup returns the grammar for a language name, or ok=false if it is not
// registered — the sole "language not registered" failure mode the Parser
// Pool's acquire() reports.
func (r *LanguageRegistry) Lookup(name string) (g *Grammar, ok bool) {
	defer func() {
		if recover() != nil {
			g, ok = nil, false
		}
	}()
	r.mu.RLock()
	defer r.mu.RUnlock()
	grammar, found := r.grammars[name]
	return grammar, found
}

// Names returns every registered language name.
func (r *LanguageRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.grammars))
	for n := range r.grammars {
		out = append(out, n)
	}
	return out
}

func recoverInto(errp *error, msg string) {
	if rec := recover(); rec != nil {
		*errp = fmt.Errorf("%s: %v", msg, rec)
	}
}
