package server

import (
	"context"
	"fmt"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/internal/lsperr"
	"github.com/tsls/treesitter-ls/pkg/metrics"
)

// Middleware wraps a jsonrpc2.Handler — the JSON-RPC analogue of
// pkg/mid.Middleware, generalized from HTTP handlers to LSP requests.
type Middleware func(jsonrpc2.Handler) jsonrpc2.Handler

// Chain applies middlewares to a handler left-to-right (first middleware is
// outermost), mirroring pkg/mid.Chain.
func Chain(h jsonrpc2.Handler, mw ...Middleware) jsonrpc2.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Logger returns middleware that logs method and duration for every
// inbound request and notification.
func Logger(log *zap.Logger) Middleware {
	return func(next jsonrpc2.Handler) jsonrpc2.Handler {
		return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
			start := time.Now()
			err := next(ctx, reply, req)
			log.Debug("request",
				zap.String("method", req.Method()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return err
		}
	}
}

// Metrics returns middleware that counts every inbound message in one total
// counter (no per-method label) and observes its latency, using reg the same way pkg/mid's HTTP middleware instruments
// an HTTP handler. A nil reg disables instrumentation entirely.
func Metrics(reg *metrics.Registry) Middleware {
	return func(next jsonrpc2.Handler) jsonrpc2.Handler {
		if reg == nil {
			return next
		}
		total := reg.Counter("treesitter_ls_requests_total", "LSP requests and notifications handled")
		latency := reg.Histogram("treesitter_ls_request_duration_seconds", "LSP request handling latency", nil)
		return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
			start := time.Now()
			err := next(ctx, reply, req)
			total.Inc()
			latency.Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Recover returns middleware that turns a panic inside a request handler
// into an internal-error response instead of killing the connection —
// there is no per-connection supervisor restarting a dead JSON-RPC
// dispatch loop, so a recovered panic here is the only thing standing
// between one bad request and the whole session going dark.
func Recover(log *zap.Logger) Middleware {
	return func(next jsonrpc2.Handler) jsonrpc2.Handler {
		return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered", zap.Any("panic", r), zap.String("method", req.Method()))
					err = reply(ctx, nil, lsperr.New(lsperr.Internal, fmt.Sprintf("panic: %v", r)))
				}
			}()
			return next(ctx, reply, req)
		}
	}
}
