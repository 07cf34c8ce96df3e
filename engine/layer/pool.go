package layer

import (
	"context"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/time/rate"
)

// Pool is a per-document parser pool: acquiring a parser either returns a
// cached one for that language or constructs a new one from the language
// registry. Pools own their parsers exclusively; concurrent callers
// serialize on the pool's mutex for the brief map operation, never while
// parsing.
type Pool struct {
	registry *LanguageRegistry

	mu      sync.Mutex
	idle    map[string][]*sitter.Parser
	// injection holds a separate sub-pool keyed by (language, timeout) for
	// parsers configured specifically for injection parsing, per the
	// Parser Pool's documented separation of concerns.
	injection map[injectionKey][]*sitter.Parser

	// injectionSpawns throttles how fast AcquireInjection may construct a
	// brand-new parser (as opposed to reusing an idle one): a document with
	// many distinct injected languages and timeout combinations can mint a
	// new sub-pool entry per combination, and an adversarial or degenerate
	// document (deeply nested, many languages) shouldn't be able to drive
	// unbounded concurrent parser construction on a single re-resolution
	// pass.
	injectionSpawns *rate.Limiter
}

// defaultInjectionSpawnRate bounds sustained new sub-pool parser
// construction to 50/s, with bursts up to the same figure, well above any
// legitimate single-document injection fan-out but low enough to flatten a
// runaway loop.
const defaultInjectionSpawnRate = 50

type injectionKey struct {
	language string
	timeout  time.Duration
}

// NewPool constructs a Pool backed by registry.
func NewPool(registry *LanguageRegistry) *Pool {
	return &Pool{
		registry:        registry,
		idle:            map[string][]*sitter.Parser{},
		injection:       map[injectionKey][]*sitter.Parser{},
		injectionSpawns: rate.NewLimiter(rate.Limit(defaultInjectionSpawnRate), defaultInjectionSpawnRate),
	}
}

// Acquire returns a parser for language, constructing one if none is idle.
// ok is false iff the language is not registered — the pool's sole failure
// mode.
func (p *Pool) Acquire(language string) (parser *sitter.Parser, ok bool) {
	p.mu.Lock()
	if stack := p.idle[language]; len(stack) > 0 {
		parser = stack[len(stack)-1]
		p.idle[language] = stack[:len(stack)-1]
		p.mu.Unlock()
		return parser, true
	}
	p.mu.Unlock()

	g, found := p.registry.Lookup(language)
	if !found {
		return nil, false
	}
	parser = sitter.NewParser()
	if err := parser.SetLanguage(g.Language); err != nil {
		return nil, false
	}
	return parser, true
}

// Release returns a parser to the idle pool for reuse.
func (p *Pool) Release(language string, parser *sitter.Parser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle[language] = append(p.idle[language], parser)
}

// AcquireInjection returns a parser from the injection sub-pool keyed by
// (language, timeout). The sub-pool grows on demand; constructing a new
// parser waits on the injectionSpawns rate limiter, and ctx bounds that
// wait: a canceled or expired ctx makes it return ok=false.
func (p *Pool) AcquireInjection(ctx context.Context, language string, timeout time.Duration) (*sitter.Parser, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}
	key := injectionKey{language: language, timeout: timeout}
	p.mu.Lock()
	if stack := p.injection[key]; len(stack) > 0 {
		parser := stack[len(stack)-1]
		p.injection[key] = stack[:len(stack)-1]
		p.mu.Unlock()
		return parser, true
	}
	p.mu.Unlock()

	if err := p.injectionSpawns.Wait(ctx); err != nil {
		return nil, false
	}

	g, found := p.registry.Lookup(language)
	if !found {
		return nil, false
	}
	parser := sitter.NewParser()
	if err := parser.SetLanguage(g.Language); err != nil {
		return nil, false
	}
	if timeout > 0 {
		parser.SetTimeout(timeout)
	}
	return parser, true
}

// ReleaseInjection returns an injection-sub-pool parser.
func (p *Pool) ReleaseInjection(language string, timeout time.Duration, parser *sitter.Parser) {
	key := injectionKey{language: language, timeout: timeout}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.injection[key] = append(p.injection[key], parser)
}

// Registry exposes the backing LanguageRegistry for components (the
// Injection Resolver) that need to look up grammars directly.
func (p *Pool) Registry() *LanguageRegistry { return p.registry }
