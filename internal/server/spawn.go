package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/internal/config"
)

// stdioConn adapts a child process's stdin/stdout pipes into the
// io.ReadWriteCloser jsonrpc2.NewStream expects.
type stdioConn struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (s stdioConn) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s stdioConn) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s stdioConn) Close() error {
	werr := s.w.Close()
	rerr := s.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// NewSpawner builds a bridge.Spawner that launches the downstream command
// lookup resolves for language, connecting to it over stdio. lookup is
// called lazily on each first request for a language, so it may read
// configuration decoded well after the Spawner itself was constructed.
func NewSpawner(lookup func(language string) (config.DownstreamServer, bool), log *zap.Logger) func(ctx context.Context, language string) (jsonrpc2.Conn, *exec.Cmd, error) {
	return func(ctx context.Context, language string) (jsonrpc2.Conn, *exec.Cmd, error) {
		ds, ok := lookup(language)
		if !ok || ds.Command == "" {
			return nil, nil, fmt.Errorf("bridge: no downstream server configured for %q", language)
		}

		cmd := exec.Command(ds.Command, ds.Args...)
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("bridge: %s: stdin pipe: %w", language, err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			_ = stdin.Close()
			return nil, nil, fmt.Errorf("bridge: %s: stdout pipe: %w", language, err)
		}
		if err := cmd.Start(); err != nil {
			_ = stdin.Close()
			_ = stdout.Close()
			return nil, nil, fmt.Errorf("bridge: %s: start: %w", language, err)
		}

		stream := jsonrpc2.NewStream(stdioConn{r: stdout, w: stdin})
		conn := jsonrpc2.NewConn(stream)
		conn.Go(ctx, emptyHandler)
		return conn, cmd, nil
	}
}

// emptyHandler replies nil to any request the downstream server sends
// back to us and drops its notifications ($/progress, window/showMessage,
// textDocument/publishDiagnostics, ...); none of them reaches the client.
func emptyHandler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, nil, nil)
}
