package server

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/engine/edit"
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/position"
)

func toPos(p protocol.Position) position.Pos {
	return position.Pos{Line: p.Line, Character: p.Character}
}

// DidOpen performs the document's first parse, building its host layer and
// recursively resolving injections.
func (s *Server) DidOpen(_ context.Context, params *protocol.DidOpenTextDocumentParams) error {
	hostLanguage := string(params.TextDocument.LanguageID)
	tree := layer.NewDocument(s.pool, hostLanguage, s.slog)
	if err := tree.Parse(params.TextDocument.Text, layer.RunInjectionQuery); err != nil {
		s.log.Warn("parse failed on open",
			zap.String("uri", string(params.TextDocument.URI)),
			zap.Error(err))
	}

	doc := newDocument(params.TextDocument.URI, hostLanguage, params.TextDocument.Version, tree)

	s.mu.Lock()
	s.documents[params.TextDocument.URI] = doc
	s.mu.Unlock()
	return nil
}

// DidChange applies each content change as an incremental edit, falling
// back to a full re-parse for a change with no range (full-sync clients).
func (s *Server) DidChange(_ context.Context, params *protocol.DidChangeTextDocumentParams) error {
	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	for _, change := range params.ContentChanges {
		if change.Range == nil {
			if err := doc.tree.Parse(change.Text, layer.RunInjectionQuery); err != nil {
				s.log.Warn("full reparse failed", zap.Error(err))
			}
			continue
		}

		mapper := doc.tree.Mapper()
		start := mapper.PositionToByte(toPos(change.Range.Start))
		end := mapper.PositionToByte(toPos(change.Range.End))
		text := doc.tree.Text()
		newText := text[:start] + change.Text + text[end:]

		c := edit.Change{Start: start, End: end, NewText: change.Text}
		if _, err := doc.tree.ApplyEdit(c, newText, layer.RunInjectionQuery); err != nil {
			s.log.Warn("apply edit failed", zap.Error(err))
		}
	}
	doc.version = params.TextDocument.Version
	return nil
}

// DidClose discards the document's layer tree and tokenization cache.
func (s *Server) DidClose(_ context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.documents, params.TextDocument.URI)
	s.mu.Unlock()
	return nil
}

// DidSave is a no-op: tokenization and diagnostics already track didChange.
func (s *Server) DidSave(_ context.Context, _ *protocol.DidSaveTextDocumentParams) error {
	return nil
}
