package layer

import (
	"context"
	"log/slog"
	"sort"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tsls/treesitter-ls/engine/edit"
	"github.com/tsls/treesitter-ls/engine/injection"
	"github.com/tsls/treesitter-ls/engine/position"
)

// injectionParseTimeout bounds how long a single injected layer's parse may
// run, per spec.md's "parsers configured for injection parsing, keyed by
// (language, optional timeout)" sub-pool. The host layer has no such bound.
const injectionParseTimeout = 2 * time.Second

// Layer is one parsed representation of a language inside the document:
// its language, its tree, the host-document byte ranges its tree covers,
// its nesting depth (0 = host), and — for every non-host layer — the
// region it was created from.
type Layer struct {
	Language string
	Tree     *sitter.Tree
	Ranges   []edit.Range
	Depth    int
	RegionID injection.RegionID // empty for the host layer

	Children []*Layer
}

// Text extracts a layer's logical content by concatenating its ranges out
// of the full host text, in order — the layer's compressed coordinate
// space.
func (l *Layer) Text(hostText string) string {
	var sb []byte
	for _, r := range l.Ranges {
		sb = append(sb, hostText[r.Start:r.End]...)
	}
	return string(sb)
}

// Contains reports whether a host byte offset falls in one of the layer's
// disjoint, half-open ranges.
func (l *Layer) Contains(b int) bool {
	for _, r := range l.Ranges {
		if b >= r.Start && b < r.End {
			return true
		}
	}
	return false
}

// LocalToHost maps a byte offset in the layer's local (compressed)
// coordinate space — the space its own parse tree's node offsets are
// in — into host-document byte space. The host layer's local space is
// host bytes already, so it maps unchanged.
func (l *Layer) LocalToHost(localByte int) int {
	if l.RegionID == "" {
		return localByte
	}
	remaining := localByte
	for _, r := range l.Ranges {
		width := r.End - r.Start
		if remaining < width {
			return r.Start + remaining
		}
		remaining -= width
	}
	if n := len(l.Ranges); n > 0 {
		return l.Ranges[n-1].End
	}
	return localByte
}

// HostToLocal is the inverse of LocalToHost. ok is false when hostByte
// does not fall inside any of the layer's ranges.
func (l *Layer) HostToLocal(hostByte int) (int, bool) {
	if l.RegionID == "" {
		return hostByte, true
	}
	local := 0
	for _, r := range l.Ranges {
		if hostByte >= r.Start && hostByte < r.End {
			return local + (hostByte - r.Start), true
		}
		local += r.End - r.Start
	}
	return 0, false
}

// Document owns the host layer plus the full tree of injected layers, the
// region registry used to keep region IDs stable across edits, and the
// parser pool used to parse every layer. Document methods that mutate the
// tree must be called under the caller's per-document exclusive guard —
// Document itself does not lock, per the concurrency model's "short
// critical sections only at the map level" discipline.
type Document struct {
	pool     *Pool
	registry *injection.Registry
	log      *slog.Logger

	hostLanguage string
	text         string
	mapper       *position.Mapper
	root         *Layer
}

// NewDocument constructs a Document for a freshly opened file.
func NewDocument(pool *Pool, hostLanguage string, log *slog.Logger) *Document {
	if log == nil {
		log = slog.Default()
	}
	return &Document{
		pool:         pool,
		registry:     injection.NewRegistry(),
		log:          log,
		hostLanguage: hostLanguage,
	}
}

// Text returns the document's current full text.
func (d *Document) Text() string { return d.text }

// Mapper returns the Position Mapper built over the document's current
// text.
func (d *Document) Mapper() *position.Mapper { return d.mapper }

// Root returns the host layer.
func (d *Document) Root() *Layer { return d.root }

// MatchSource abstracts running an injection query against one layer's
// tree, producing the injection.Match values the resolver needs. Supplied
// by the caller (internal/server wiring) so this package stays agnostic of
// exactly how queries are executed against a *sitter.Tree.
type MatchSource func(g *Grammar, tree *sitter.Tree, text string) []injection.Match

// Parse performs a full parse from scratch: the host layer is parsed, then
// injections are resolved recursively up to MaxDepth.
func (d *Document) Parse(text string, matches MatchSource) error {
	d.text = text
	d.mapper = position.New(text)

	g, ok := d.pool.Registry().Lookup(d.hostLanguage)
	if !ok {
		return errUnregistered(d.hostLanguage)
	}
	parser, ok := d.pool.Acquire(d.hostLanguage)
	if !ok {
		return errUnregistered(d.hostLanguage)
	}
	tree := parser.Parse([]byte(text), nil)
	d.pool.Release(d.hostLanguage, parser)

	root := &Layer{
		Language: d.hostLanguage,
		Tree:     tree,
		Ranges:   []edit.Range{{Start: 0, End: len(text)}},
		Depth:    0,
	}
	d.buildInjections(root, g, text, matches, 0)
	d.root = root
	return nil
}

func (d *Document) buildInjections(parent *Layer, parentGrammar *Grammar, text string, matches MatchSource, depth int) {
	if depth >= injection.MaxDepth {
		d.log.Warn("injection depth limit reached", "language", parent.Language, "depth", depth)
		return
	}
	if parentGrammar.InjectionQuery == nil {
		return
	}
	raw := matches(parentGrammar, parent.Tree, text)
	regions := injection.Resolve(d.mapper, raw)
	assigned, _ := d.registry.Reconcile(string(parent.RegionID), regions)

	for _, a := range assigned {
		childGrammar, ok := d.pool.Registry().Lookup(a.Language)
		if !ok {
			d.log.Info("injected language not registered, region dropped",
				"language", a.Language, "region", a.ID)
			continue
		}
		parser, ok := d.pool.AcquireInjection(context.Background(), a.Language, injectionParseTimeout)
		if !ok {
			continue
		}
		child := &Layer{
			Language: a.Language,
			Ranges:   []edit.Range{{Start: parent.LocalToHost(a.Start), End: parent.LocalToHost(a.End)}},
			Depth:    depth + 1,
			RegionID: a.ID,
		}
		content := text[a.Start:a.End]
		child.Tree = parser.Parse([]byte(content), nil)
		d.pool.ReleaseInjection(a.Language, injectionParseTimeout, parser)

		parent.Children = append(parent.Children, child)
		d.buildInjections(child, childGrammar, content, matches, depth+1)
	}
}

// ApplyEdit rewrites c into per-layer edits, updates every touched layer's
// ranges, and re-parses layers whose content changed. It returns the set
// of layers whose content was actually re-parsed (as opposed to merely
// range-shifted), for callers (the Tokenization Pipeline) that want to
// recompute only what changed.
func (d *Document) ApplyEdit(c edit.Change, newText string, matches MatchSource) ([]*Layer, error) {
	newEndPoint := d.mapper.ByteToPoint(c.Start + len(c.NewText))
	hostEdit := edit.HostEdit(d.mapper, c, newEndPoint)

	d.text = newText
	d.mapper = position.New(newText)

	var changed []*Layer
	var walk func(l *Layer) bool
	walk = func(l *Layer) bool {
		touched := edit.Touches(l.Ranges, c)
		l.Ranges = edit.AdjustRanges(l.Ranges, c)
		if len(l.Ranges) == 0 && l.Depth > 0 {
			return false // layer dissolved; drop it from the tree
		}
		if touched {
			d.reparseLayer(l, hostEdit, newText)
			changed = append(changed, l)
		}
		kept := l.Children[:0]
		for _, child := range l.Children {
			if walk(child) {
				kept = append(kept, child)
			}
		}
		l.Children = kept
		return true
	}
	walk(d.root)

	// Re-run injection resolution on every changed layer (including the
	// host) to discover new regions and retire gone ones.
	for _, l := range changed {
		g, ok := d.pool.Registry().Lookup(l.Language)
		if !ok {
			continue
		}
		text := l.Text(newText)
		l.Children = nil
		d.buildInjections(l, g, text, matches, l.Depth)
	}
	return changed, nil
}

func (d *Document) reparseLayer(l *Layer, hostEdit edit.InputEdit, newText string) {
	if _, ok := d.pool.Registry().Lookup(l.Language); !ok {
		return
	}

	if l.Depth == 0 {
		parser, ok := d.pool.Acquire(l.Language)
		if !ok {
			return
		}
		defer d.pool.Release(l.Language, parser)
		l.Tree.Edit(sitterInputEdit(hostEdit))
		l.Tree = parser.Parse([]byte(newText), l.Tree)
		return
	}

	parser, ok := d.pool.AcquireInjection(context.Background(), l.Language, injectionParseTimeout)
	if !ok {
		return
	}
	defer d.pool.ReleaseInjection(l.Language, injectionParseTimeout, parser)
	content := l.Text(newText)
	l.Tree = parser.Parse([]byte(content), nil)
}

func sitterInputEdit(e edit.InputEdit) sitter.InputEdit {
	return sitter.InputEdit{
		StartByte:   uint(e.StartByte),
		OldEndByte:  uint(e.OldEndByte),
		NewEndByte:  uint(e.NewEndByte),
		StartPoint:  sitter.Point{Row: e.StartPoint.Row, Column: e.StartPoint.Column},
		OldEndPoint: sitter.Point{Row: e.OldEndPoint.Row, Column: e.OldEndPoint.Column},
		NewEndPoint: sitter.Point{Row: e.NewEndPoint.Row, Column: e.NewEndPoint.Column},
	}
}

// LayerAt returns the deepest layer whose ranges contain byte offset b —
// the tie-break rule when two injections of the same language sit at
// different depths.
func (d *Document) LayerAt(b int) *Layer {
	best := d.root
	var walk func(l *Layer)
	walk = func(l *Layer) {
		for _, c := range l.Children {
			if c.Contains(b) {
				if c.Depth > best.Depth {
					best = c
				}
				walk(c)
			}
		}
	}
	walk(d.root)
	return best
}

// PathAt returns the chain of layers containing byte offset b, host layer
// first and the deepest containing layer last. Used by selectionRange
// building, which must walk ancestors across injected-layer boundaries
// rather than stop at the single deepest layer LayerAt returns.
func (d *Document) PathAt(b int) []*Layer {
	path := []*Layer{d.root}
	cur := d.root
	for {
		next := (*Layer)(nil)
		for _, c := range cur.Children {
			if c.Contains(b) {
				next = c
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		cur = next
	}
}

// AllLayers returns every layer in the tree in document (pre-order)
// traversal order, host layer first.
func (d *Document) AllLayers() []*Layer {
	var out []*Layer
	var walk func(l *Layer)
	walk = func(l *Layer) {
		out = append(out, l)
		sorted := make([]*Layer, len(l.Children))
		copy(sorted, l.Children)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Ranges[0].Start < sorted[j].Ranges[0].Start
		})
		for _, c := range sorted {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

type unregisteredLanguageError struct{ language string }

func (e *unregisteredLanguageError) Error() string {
	return "language not registered: " + e.language
}

func errUnregistered(language string) error {
	return &unregisteredLanguageError{language: language}
}
