package server

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/tsls/treesitter-ls/engine/tokens"
	"github.com/tsls/treesitter-ls/internal/lsperr"
)

// SemanticTokensFull computes (or retrieves from cache) the document's full
// token sequence, per the Tokenization Pipeline (spec.md §4.6-4.7).
func (s *Server) SemanticTokensFull(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	sources := layerSources(doc.tree, s.registry, s.currentCaptureMap())
	entry, err := s.pipeline.Full(ctx, doc.cache, doc.tree.Text(), sources)
	if err != nil {
		return nil, lsperr.Wrap(lsperr.Internal, "semanticTokens/full", err)
	}
	return &protocol.SemanticTokens{
		ResultID: entry.ResultID,
		Data:     tokens.Flatten(tokens.Encode(entry.Tokens)),
	}, nil
}

// SemanticTokensFullDelta computes a delta against the client's previous
// result ID, falling back to a full result when the previous ID matches
// neither the cache's current entry nor the one before it.
func (s *Server) SemanticTokensFullDelta(ctx context.Context, params *protocol.SemanticTokensDeltaParams) (interface{}, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	sources := layerSources(doc.tree, s.registry, s.currentCaptureMap())
	entry, err := s.pipeline.Full(ctx, doc.cache, doc.tree.Text(), sources)
	if err != nil {
		return nil, lsperr.Wrap(lsperr.Internal, "semanticTokens/full/delta", err)
	}

	edits, resultID, ok := doc.cache.Delta(params.PreviousResultID)
	if !ok {
		return &protocol.SemanticTokens{
			ResultID: entry.ResultID,
			Data:     tokens.Flatten(tokens.Encode(entry.Tokens)),
		}, nil
	}

	out := make([]protocol.SemanticTokensEdit, len(edits))
	for i, e := range edits {
		out[i] = protocol.SemanticTokensEdit{
			Start:       uint32(e.Start),
			DeleteCount: uint32(e.DeleteCount),
			Data:        e.Data,
		}
	}
	return &protocol.SemanticTokensDelta{ResultID: resultID, Edits: out}, nil
}

// SemanticTokensRange re-encodes the (cached) full token stream against the
// requested range, with a fresh encoding origin.
func (s *Server) SemanticTokensRange(ctx context.Context, params *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	sources := layerSources(doc.tree, s.registry, s.currentCaptureMap())
	encoded, err := s.pipeline.Range(ctx, doc.cache, doc.tree.Text(), sources,
		int(params.Range.Start.Line), int(params.Range.Start.Character),
		int(params.Range.End.Line), int(params.Range.End.Character))
	if err != nil {
		return nil, lsperr.Wrap(lsperr.Internal, "semanticTokens/range", err)
	}
	return &protocol.SemanticTokens{Data: tokens.Flatten(encoded)}, nil
}
