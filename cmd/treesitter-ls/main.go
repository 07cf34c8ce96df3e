// Package main is the stdio entrypoint for treesitter-ls.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	_ "go.uber.org/automaxprocs"

	"github.com/tsls/treesitter-ls/engine/bridge"
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/tokens"
	"github.com/tsls/treesitter-ls/internal/config"
	"github.com/tsls/treesitter-ls/internal/notifybus"
	"github.com/tsls/treesitter-ls/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "treesitter-ls: build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(slogger)

	if err := run(logger, slogger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

// stdioConn wraps the process's own stdin/stdout as the jsonrpc2 transport
// to the editor that spawned us.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioConn) Close() error {
	_ = os.Stdin.Close()
	return os.Stdout.Close()
}

func run(logger *zap.Logger, slogger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := notifybus.Start()
	if err != nil {
		return fmt.Errorf("start notification bus: %w", err)
	}
	defer bus.Close()

	// Grammars are registered lazily from Server.Initialize, once
	// initializationOptions has told us where the data directory (and its
	// installed query files) lives.
	registry := layer.NewLanguageRegistry()
	pool := layer.NewPool(registry)
	pipeline := tokens.New(tokens.DefaultOptions(), slogger)

	stream := jsonrpc2.NewStream(stdioConn{})
	conn := jsonrpc2.NewConn(stream)
	client := protocol.ClientDispatcher(conn, logger)

	// srv is forward-declared so the bridge Spawner (constructed before srv
	// exists) can still resolve each language's downstream command from
	// whatever initializationOptions Initialize eventually decodes — the
	// closure only runs lazily, on the first request for a language, which
	// can never happen before Initialize has returned.
	var srv *server.Server

	spawner := server.NewSpawner(func(language string) (config.DownstreamServer, bool) {
		ds, ok := srv.DownstreamServer(language)
		return ds, ok
	}, logger)

	bridgeMgr := bridge.NewManager(spawner, bus, logger, bridge.DefaultOptions())

	if err := bus.Subscribe(func(ctx context.Context, n notifybus.Notification) {
		server.RelayNotification(ctx, client, logger, n)
	}); err != nil {
		return fmt.Errorf("subscribe notification bus: %w", err)
	}

	srv = server.New(client, server.Deps{
		Registry:  registry,
		Pool:      pool,
		Pipeline:  pipeline,
		BridgeMgr: bridgeMgr,
		Log:       logger,
		SLog:      slogger,
	})

	handler := protocol.ServerHandler(srv, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		return reply(ctx, nil, nil)
	})
	chained := server.Chain(handler, server.Recover(logger), server.Metrics(srv.Metrics()), server.Logger(logger))

	conn.Go(ctx, chained)

	select {
	case <-conn.Done():
		return conn.Err()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownCeiling())
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Warn("bridge shutdown", zap.Error(err))
		}
		return conn.Close()
	}
}
