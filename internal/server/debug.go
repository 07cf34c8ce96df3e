package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/pkg/mid"
)

// startDebugServer launches the /metrics endpoint on port, wrapped the same
// way pkg/mid wraps any other HTTP handler. It never blocks Initialize:
// listen errors (most commonly the port already being in use) are logged,
// not returned, since a broken debug surface should not fail LSP startup.
func (s *Server) startDebugServer(port int) {
	handler := mid.Chain(s.metrics.Handler(), mid.Recover(s.slog), mid.Logger(s.slog))

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	s.mu.Lock()
	s.debugServer = srv
	s.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("debug metrics server exited", zap.Int("port", port), zap.Error(err))
		}
	}()
}
