package server

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/tsls/treesitter-ls/engine/selection"
)

// SelectionRange walks each requested position's ancestor spans — crossing
// injected-layer boundaries where the position falls inside one — and
// returns the resulting parent-linked chain per position, in request order.
func (s *Server) SelectionRange(_ context.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	mapper := doc.tree.Mapper()
	out := make([]protocol.SelectionRange, len(params.Positions))
	for i, p := range params.Positions {
		b := mapper.PositionToByte(toPos(p))
		spans := selection.HostSpansAt(doc.tree, b)
		chain := selection.ChainFromSpans(mapper, spans)
		out[i] = toProtocolSelectionRange(chain)
	}
	return out, nil
}

func toProtocolSelectionRange(r *selection.Range) protocol.SelectionRange {
	if r == nil {
		return protocol.SelectionRange{}
	}
	out := protocol.SelectionRange{
		Range: protocol.Range{
			Start: protocol.Position{Line: r.Start.Line, Character: r.Start.Character},
			End:   protocol.Position{Line: r.End.Line, Character: r.End.Character},
		},
	}
	if r.Parent != nil {
		parent := toProtocolSelectionRange(r.Parent)
		out.Parent = &parent
	}
	return out
}
