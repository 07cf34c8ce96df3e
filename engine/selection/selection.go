// Package selection implements selectionRange requests. The distilled
// spec lists selectionRange only in its capability list (spec.md §6); the
// original implementation's selection context walks the host tree and,
// at the requested position, descends into whichever injected layer is
// deepest at that byte — this package restores that behavior.
package selection

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tsls/treesitter-ls/engine/edit"
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/position"
)

// Range is one link of the LSP selectionRange chain: a span plus the next
// wider span that contains it, or nil at the outermost range.
type Range struct {
	Start  position.Pos
	End    position.Pos
	Parent *Range
}

// ChainFromSpans builds a parent-linked Range chain out of host-byte spans
// ordered innermost first, outermost last — the shape produced by walking
// a node's ancestors from the cursor up to the document root, possibly
// crossing one or more injected-layer boundaries along the way.
// Consecutive spans with identical bounds collapse into a single entry,
// since LSP clients expect each step in the chain to be strictly wider
// than the last.
func ChainFromSpans(mapper *position.Mapper, spans []edit.Range) *Range {
	deduped := make([]edit.Range, 0, len(spans))
	for _, s := range spans {
		if n := len(deduped); n > 0 && deduped[n-1] == s {
			continue
		}
		deduped = append(deduped, s)
	}
	if len(deduped) == 0 {
		return nil
	}

	// Build from the outermost span inward so each link's Parent already
	// points at the next-wider span; the last link built (the innermost
	// span) is what a selectionRange response starts from.
	var parent *Range
	var innermost *Range
	for i := len(deduped) - 1; i >= 0; i-- {
		s := deduped[i]
		r := &Range{
			Start:  mapper.ByteToPosition(s.Start),
			End:    mapper.ByteToPosition(s.End),
			Parent: parent,
		}
		parent = r
		innermost = r
	}
	return innermost
}

// HostSpansAt walks the layer path containing hostByte from the deepest
// injected layer up to the host, collecting each ancestor node's byte
// span translated into host coordinates, for use with ChainFromSpans.
func HostSpansAt(doc *layer.Document, hostByte int) []edit.Range {
	path := doc.PathAt(hostByte)
	if len(path) == 0 {
		return nil
	}

	var spans []edit.Range
	// current byte position expressed in the coordinate space of the
	// layer currently being walked; starts in host coordinates at the
	// deepest layer and is re-expressed in host coordinates again once
	// translated out of that layer, since every layer's Ranges map
	// directly to host bytes.
	for i := len(path) - 1; i >= 0; i-- {
		l := path[i]
		localByte, ok := l.HostToLocal(hostByte)
		if !ok {
			continue
		}
		for _, sp := range ancestorSpans(l, localByte) {
			spans = append(spans, sp)
		}
	}
	return spans
}

// ancestorSpans walks a layer's parse tree from the smallest node
// containing localByte up to the tree's root, returning each node's span
// translated into host coordinates, innermost first.
func ancestorSpans(l *layer.Layer, localByte int) []edit.Range {
	if l.Tree == nil {
		return nil
	}
	node := l.Tree.RootNode()
	if node == nil {
		return nil
	}
	smallest := descend(node, localByte)

	var spans []edit.Range
	for n := smallest; n != nil; n = n.Parent() {
		start := int(n.StartByte())
		end := int(n.EndByte())
		spans = append(spans, edit.Range{
			Start: l.LocalToHost(start),
			End:   l.LocalToHost(end),
		})
	}
	return spans
}

// descend finds the smallest named descendant of node containing byte b,
// breaking ties toward the first child whose range contains b.
func descend(node *sitter.Node, b int) *sitter.Node {
	for {
		child := childContaining(node, b)
		if child == nil {
			return node
		}
		node = child
	}
}

func childContaining(node *sitter.Node, b int) *sitter.Node {
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		c := node.NamedChild(i)
		if c == nil {
			continue
		}
		if b >= int(c.StartByte()) && b < int(c.EndByte()) {
			return c
		}
	}
	return nil
}
