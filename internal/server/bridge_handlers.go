package server

import (
	"context"
	"encoding/json"
	"errors"

	"go.lsp.dev/protocol"

	"github.com/tsls/treesitter-ls/engine/bridge"
	"github.com/tsls/treesitter-ls/engine/injection"
	"github.com/tsls/treesitter-ls/internal/lsperr"
)

// openRegion ensures a virtual document is open downstream for region,
// syncing its content if it changed since the last forwarded request, and
// returns the virtual URI to forward against. The downstream I/O runs
// without doc.mu held: only the regionContent bookkeeping needs it,
// per spec.md §5's "long-running work (parsing, tokenizing, I/O) MUST NOT
// hold any shared lock."
func (s *Server) openRegion(ctx context.Context, doc *document, language string, region injection.RegionID, content, hostURI string) (string, error) {
	virtualURI, err := s.bridgeMgr.Open(ctx, language, string(region), hostURI, content)
	if err != nil {
		return "", err
	}

	doc.mu.Lock()
	prev, seen := doc.regionContent[region]
	changed := seen && prev != content
	if !seen {
		doc.regionContent[region] = content
	}
	doc.mu.Unlock()

	if changed {
		if err := s.bridgeMgr.Sync(ctx, language, virtualURI, content); err != nil {
			return "", err
		}
		doc.mu.Lock()
		doc.regionContent[region] = content
		doc.mu.Unlock()
	}
	return virtualURI, nil
}

// forwardAtPosition locates the injected layer under pos, opens/syncs its
// virtual document, forwards method with params, and decodes the
// (already host-translated) downstream result into result.
//
// doc.mu is held only long enough to snapshot the layer, its content, and
// the host coordinates needed for translation — never across the
// downstream open/sync/forward calls that follow. Those are network I/O
// and holding the document's exclusive guard across them would serialize
// every request against the same document, which both violates spec.md
// §5's locking discipline and would make Manager.Forward's superseding
// unreachable: two completion requests for the same document could never
// actually be in flight at once.
func (s *Server) forwardAtPosition(ctx context.Context, uri protocol.DocumentURI, pos protocol.Position, method string, params, result any) error {
	doc, ok := s.getDocument(uri)
	if !ok {
		return lsperr.New(lsperr.NotFound, "document not open")
	}

	doc.mu.Lock()
	mapper := doc.tree.Mapper()
	b := mapper.PositionToByte(toPos(pos))
	l := doc.tree.LayerAt(b)
	if l.RegionID == "" {
		doc.mu.Unlock()
		return lsperr.New(lsperr.NotFound, "position is in the host document, not an injected region")
	}
	hostURI := string(uri)
	content := l.Text(doc.tree.Text())
	hostStartLine := int(mapper.ByteToPosition(l.Ranges[0].Start).Line)
	language, regionID := l.Language, l.RegionID
	doc.mu.Unlock()

	virtualURI, err := s.openRegion(ctx, doc, language, regionID, content, hostURI)
	if err != nil {
		return lsperr.Wrap(lsperr.DownstreamIO, "open virtual document", err)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return lsperr.Wrap(lsperr.Internal, "marshal params", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return lsperr.Wrap(lsperr.Internal, "unmarshal params", err)
	}

	out, err := s.bridgeMgr.Forward(ctx, language, hostURI, method, generic, hostStartLine, virtualURI, hostURI)
	if err != nil {
		var superseded *bridge.ErrSuperseded
		if errors.As(err, &superseded) {
			return lsperr.New(lsperr.Superseded, method)
		}
		return lsperr.Wrap(lsperr.DownstreamIO, method, err)
	}
	if out == nil || result == nil {
		return nil
	}
	outRaw, err := json.Marshal(out)
	if err != nil {
		return lsperr.Wrap(lsperr.Internal, "marshal downstream result", err)
	}
	return json.Unmarshal(outRaw, result)
}

func silent(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if lsperr.IsSilent(lsperr.KindOf(err)) {
		return true, nil
	}
	return true, err
}

// Hover forwards textDocument/hover to the downstream server for the
// injected region under the cursor.
func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	var result protocol.Hover
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/hover", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return &result, nil
}

// Completion forwards textDocument/completion to the downstream server for
// the injected region under the cursor.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	var result protocol.CompletionList
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/completion", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return &result, nil
}

// SignatureHelp forwards textDocument/signatureHelp.
func (s *Server) SignatureHelp(ctx context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	var result protocol.SignatureHelp
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/signatureHelp", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return &result, nil
}

// Definition forwards textDocument/definition.
func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	var result []protocol.Location
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/definition", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return result, nil
}

// References forwards textDocument/references.
func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	var result []protocol.Location
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/references", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return result, nil
}

// DocumentHighlight forwards textDocument/documentHighlight.
func (s *Server) DocumentHighlight(ctx context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	var result []protocol.DocumentHighlight
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Position, "textDocument/documentHighlight", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return result, nil
}

// CodeAction forwards textDocument/codeAction, anchored at the requested
// range's start position to pick the owning injected region.
func (s *Server) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	var result []protocol.CodeAction
	err := s.forwardAtPosition(ctx, params.TextDocument.URI, params.Range.Start, "textDocument/codeAction", params, &result)
	if dropped, propagated := silent(err); dropped {
		return nil, propagated
	}
	return result, nil
}
