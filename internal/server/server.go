// Package server implements the upstream JSON-RPC entrypoint: the
// protocol.Server method set the editor's LSP client talks to, composing
// the Language Layer Tree, the Tokenization Pipeline, selection ranges,
// and the Bridge Multiplexer into LSP request and notification handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/engine/bridge"
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/tokens"
	"github.com/tsls/treesitter-ls/internal/config"
	"github.com/tsls/treesitter-ls/internal/lsperr"
	"github.com/tsls/treesitter-ls/pkg/metrics"
)

// Server implements protocol.Server. It embeds the interface itself (as a
// nil value) so the zero value still satisfies the full, large LSP method
// set; a method reached only through that embedding panics, and the
// Recover middleware turns that panic into an internal-error reply.
// Initialize advertises rename, document color, document link and document
// symbol support, none of which has a method here, so those requests take
// that path.
type Server struct {
	protocol.Server

	client protocol.Client
	log    *zap.Logger
	slog   *slog.Logger

	registry  *layer.LanguageRegistry
	pool      *layer.Pool
	pipeline  *tokens.Pipeline
	bridgeMgr *bridge.Manager

	cfgMu      sync.RWMutex
	cfg        config.Options
	captureMap tokens.CaptureMap

	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*document

	shuttingDown bool

	metrics     *metrics.Registry
	debugOnce   sync.Once
	debugServer *http.Server
}

// Deps bundles the collaborators a Server is built from.
type Deps struct {
	Registry  *layer.LanguageRegistry
	Pool      *layer.Pool
	Pipeline  *tokens.Pipeline
	BridgeMgr *bridge.Manager
	Log       *zap.Logger
	SLog      *slog.Logger
}

// New constructs a Server. client is the handle used to call back into the
// editor (publishDiagnostics, registerCapability, …); deps supplies the
// already-wired engine collaborators.
func New(client protocol.Client, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.SLog == nil {
		deps.SLog = slog.Default()
	}
	return &Server{
		client:     client,
		log:        deps.Log,
		slog:       deps.SLog,
		registry:   deps.Registry,
		pool:       deps.Pool,
		pipeline:   deps.Pipeline,
		bridgeMgr:  deps.BridgeMgr,
		captureMap: tokens.NewCaptureMap(nil),
		documents:  make(map[protocol.DocumentURI]*document),
		metrics:    metrics.New(),
	}
}

// Metrics returns the server's metrics registry. Always non-nil.
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Initialize decodes initializationOptions, builds the semantic token
// legend, and advertises the LSP surface named in spec.md §6.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	cfg := config.Options{}
	if params.InitializationOptions != nil {
		raw, err := json.Marshal(params.InitializationOptions)
		if err != nil {
			return nil, lsperr.Wrap(lsperr.InvalidInput, "initializationOptions", err)
		}
		cfg, err = config.Decode(raw)
		if err != nil {
			return nil, lsperr.Wrap(lsperr.InvalidInput, "initializationOptions", err)
		}
	} else {
		cfg, _ = config.Decode(nil)
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.captureMap = tokens.NewCaptureMap(cfg.TokenTypes)
	s.cfgMu.Unlock()

	if err := layer.RegisterBuiltins(s.registry, loadQueries(cfg.DataDir, s.log)); err != nil {
		return nil, lsperr.Wrap(lsperr.Internal, "register builtin grammars", err)
	}

	if cfg.MetricsPort > 0 {
		s.debugOnce.Do(func() { s.startDebugServer(cfg.MetricsPort) })
	}

	legend := protocol.SemanticTokensLegend{
		TokenTypes:     tokens.Legend,
		TokenModifiers: []string{},
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: legend,
				Range:  true,
				Full:   true,
			},
			SelectionRangeProvider:    true,
			HoverProvider:             true,
			CompletionProvider:        &protocol.CompletionOptions{TriggerCharacters: []string{".", ":"}},
			SignatureHelpProvider:     &protocol.SignatureHelpOptions{TriggerCharacters: []string{"(", ","}},
			DefinitionProvider:        true,
			ReferencesProvider:        true,
			RenameProvider:            true,
			CodeActionProvider:        true,
			DocumentColorProvider:     true,
			DocumentLinkProvider:      &protocol.DocumentLinkOptions{},
			DocumentSymbolProvider:    true,
			DocumentHighlightProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "treesitter-ls",
			Version: "0.1.0",
		},
	}, nil
}

func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.log.Info("initialized")
	return nil
}

// Shutdown drains every downstream bridge connection, bounded by the
// configured shutdown ceiling.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	debugServer := s.debugServer
	s.mu.Unlock()
	if debugServer != nil {
		_ = debugServer.Shutdown(ctx)
	}
	return s.bridgeMgr.Shutdown(ctx)
}

// Exit returns nil without stopping anything itself; the caller
// (cmd/treesitter-ls) is responsible for stopping the run loop.
func (s *Server) Exit(_ context.Context) error {
	return nil
}

func (s *Server) getDocument(uri protocol.DocumentURI) (*document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[uri]
	return d, ok
}

func (s *Server) currentCaptureMap() tokens.CaptureMap {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.captureMap
}

// DownstreamServer returns the configured downstream command for language,
// as decoded from the most recent initializationOptions. Consulted lazily
// by the bridge Spawner, which only ever runs after Initialize has set cfg.
func (s *Server) DownstreamServer(language string) (config.DownstreamServer, bool) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	ds, ok := s.cfg.Servers[language]
	return ds, ok
}

// ShutdownCeiling returns the configured bound on graceful shutdown.
func (s *Server) ShutdownCeiling() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.ShutdownCeiling()
}
