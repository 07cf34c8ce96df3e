package tokens

import (
	"context"
	"log/slog"

	"github.com/tsls/treesitter-ls/pkg/fn"
)

// LayerSource is whatever the caller's Language Layer Tree implementation
// exposes: one layer, queryable for its raw tokens. internal/server adapts
// a *layer.Layer into this shape so this package stays independent of the
// tree-sitter plumbing.
type LayerSource interface {
	Tokenize() ([]Raw, error)
	Name() string
}

// Options configures a Pipeline. The zero value is usable.
type Options struct {
	// MaxParallelLayers bounds fan-out across layers; 0 (or less) runs one
	// worker per layer, which is what fn.ParMapResult does when given 0.
	MaxParallelLayers int
}

// DefaultOptions returns the zero-value Options.
func DefaultOptions() Options { return Options{} }

// Pipeline runs full tokenization across a document's layers, caches the
// result by content fingerprint, and computes LSP-ready token arrays or
// deltas.
type Pipeline struct {
	opts Options
	log  *slog.Logger
}

// New constructs a Pipeline.
func New(opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{opts: opts, log: log}
}

// Full computes (or retrieves from cache) the full absolute token
// sequence for a document, given its current text and layers. Parallelism
// across disjoint layers is permitted; the subsequent sort/dedup/encode
// step is always serial.
func (p *Pipeline) Full(ctx context.Context, cache *Cache, text string, layers []LayerSource) (*Entry, error) {
	fp := Fingerprint256(text)
	var computeErr error
	entry := cache.Get(fp, func() []Absolute {
		raw, err := p.collect(ctx, layers)
		if err != nil {
			computeErr = err
			return nil
		}
		return SortAndDedup(raw)
	})
	if computeErr != nil {
		return nil, computeErr
	}
	return entry, nil
}

// collect fans out Tokenize across layers using the teacher's bounded
// parallel-map primitive, then flattens every layer's raw tokens into one
// slice for the serial sort/dedup/encode pass.
func (p *Pipeline) collect(ctx context.Context, layers []LayerSource) ([]Raw, error) {
	results := fn.ParMapResult(layers, p.opts.MaxParallelLayers, func(l LayerSource) fn.Result[[]Raw] {
		toks, err := l.Tokenize()
		if err != nil {
			p.log.Warn("layer tokenization failed", "layer", l.Name(), "error", err)
			return fn.Ok[[]Raw](nil) // a failing layer contributes no tokens, not a pipeline failure
		}
		return fn.Ok(toks)
	})

	var all []Raw
	for _, r := range results {
		toks, err := r.Unwrap()
		if err == nil {
			all = append(all, toks...)
		}
	}
	return all, nil
}

// Range computes range-filtered tokens: the full (cached) stream, filtered
// to the requested range with strict inclusion semantics, re-encoded
// against a fresh origin rather than the document's absolute origin.
func (p *Pipeline) Range(ctx context.Context, cache *Cache, text string, layers []LayerSource, startLine, startCol, endLine, endCol int) ([]Encoded, error) {
	entry, err := p.Full(ctx, cache, text, layers)
	if err != nil {
		return nil, err
	}
	filtered := FilterRange(entry.Tokens, startLine, startCol, endLine, endCol)
	return Encode(filtered), nil
}
