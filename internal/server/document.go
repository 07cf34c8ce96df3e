package server

import (
	"sync"

	"go.lsp.dev/protocol"

	"github.com/tsls/treesitter-ls/engine/injection"
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/tokens"
)

// document is the per-open-file state: its Language Layer Tree, its
// tokenization cache, and the exclusive guard serializing every request
// that touches it — the concurrency model's per-document critical section
// (spec.md §5). Every handler holds mu while it reads or mutates tree or
// cache; forwardAtPosition and openRegion release it across their
// downstream I/O.
type document struct {
	mu sync.Mutex

	uri        protocol.DocumentURI
	languageID string
	version    int32

	tree  *layer.Document
	cache *tokens.Cache

	// regionContent tracks the last content forwarded downstream per
	// region, so a capability request only sends didChange when the
	// region's text actually changed since the prior forward.
	regionContent map[injection.RegionID]string
}

func newDocument(uri protocol.DocumentURI, languageID string, version int32, tree *layer.Document) *document {
	return &document{
		uri:           uri,
		languageID:    languageID,
		version:       version,
		tree:          tree,
		cache:         tokens.NewCache(),
		regionContent: map[injection.RegionID]string{},
	}
}
