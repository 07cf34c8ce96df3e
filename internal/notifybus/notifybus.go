// Package notifybus is an embedded, in-process NATS server with one subject
// for downstream notifications: Publish puts a Notification on it and a
// single Subscribe handler relays it to the client. No bridge code calls
// Publish, so downstream notifications do not reach this bus.
package notifybus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/tsls/treesitter-ls/pkg/natsutil"
)

// Notification is one forwarded downstream notification, already
// translated to host coordinates and host URIs where applicable.
type Notification struct {
	Language string
	Method   string // "$/progress", "window/showMessage", "window/logMessage", "textDocument/publishDiagnostics"
	Params   any
}

const subject = "tsls.bridge.notifications"

// Bus wraps an embedded NATS server plus a connected client, scoped to one
// server process. It is not a durable broker: a restart loses nothing,
// since no notification must survive a process restart.
type Bus struct {
	srv *server.Server
	nc  *nats.Conn
}

// Start launches the embedded server and connects a client to it.
func Start() (*Bus, error) {
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       -1, // let the OS choose an ephemeral port
		NoSigs:     true,
		DontListen: false,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("notifybus: start embedded nats: %w", err)
	}
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("notifybus: embedded nats did not become ready")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("notifybus: connect: %w", err)
	}
	return &Bus{srv: srv, nc: nc}, nil
}

// Publish sends a notification onto the bus without waiting for the
// subscriber to handle it. The bridge does not call it.
func (b *Bus) Publish(ctx context.Context, n Notification) error {
	return natsutil.Publish(ctx, b.nc, subject, n)
}

// Subscribe registers the single relay handler that forwards bus
// notifications to the upstream client writer.
func (b *Bus) Subscribe(handler func(context.Context, Notification)) error {
	_, err := natsutil.Subscribe(b.nc, subject, handler)
	return err
}

// Close drains the client connection and shuts the embedded server down.
func (b *Bus) Close() {
	b.nc.Close()
	b.srv.Shutdown()
}
