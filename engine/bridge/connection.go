package bridge

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// Spawner starts a downstream language server process and returns a
// jsonrpc2.Conn wired to its stdio, plus the process handle for signaling
// on shutdown. internal/server supplies the concrete implementation
// (os/exec.Command + stdio pipes) so this package stays testable against
// fakes.
type Spawner func(ctx context.Context, language string) (jsonrpc2.Conn, *exec.Cmd, error)

// DefaultLivenessTimeout bounds how long a connection can sit with pending
// requests and no stdout activity before it's presumed dead. Default 60s,
// spec range 30-120s.
const DefaultLivenessTimeout = 60 * time.Second

// Connection is one downstream language server connection: its lifecycle
// state, its JSON-RPC transport, and its pending-request table. A single
// bad request transitions it straight to Failed (spec's DownstreamIO rule);
// the circuit breaker that guards against hammering a persistently broken
// downstream command lives on Manager instead, keyed by language, since it
// must survive across the repeated respawns a flapping connection causes.
type Connection struct {
	Language string

	// ID disambiguates this spawn instance from the ones before and after
	// it in logs: a flapping downstream respawns under the same Language,
	// so log lines from two successive *Connection values would otherwise
	// be indistinguishable.
	ID string

	conn  jsonrpc2.Conn
	cmd   *exec.Cmd
	state stateBox
	pend  *pendingTable

	log *zap.Logger

	livenessTimeout time.Duration
	livenessMu      sync.Mutex
	livenessTimer   *time.Timer

	nextRequestID int64

	// capabilities recorded from the initialize response, keyed by the
	// top-level property names of its capabilities object (e.g.
	// "hoverProvider"). client/registerCapability requests are not recorded.
	capMu        sync.Mutex
	capabilities map[string]bool

	// openDocuments tracks which virtual URIs have received a didOpen.
	openMu        sync.Mutex
	openDocuments map[string]int // uri -> version last sent
}

func newConnection(language string, conn jsonrpc2.Conn, cmd *exec.Cmd, log *zap.Logger, livenessTimeout time.Duration) *Connection {
	if livenessTimeout <= 0 {
		livenessTimeout = DefaultLivenessTimeout
	}
	c := &Connection{
		Language:        language,
		ID:              uuid.NewString(),
		conn:            conn,
		cmd:             cmd,
		pend:            newPendingTable(),
		log:             log,
		livenessTimeout: livenessTimeout,
		capabilities:    map[string]bool{},
		openDocuments:   map[string]int{},
	}
	c.state.value = Initializing
	return c
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return c.state.get() }

// nextID allocates a fresh downstream request ID.
func (c *Connection) nextID() int64 {
	return atomic.AddInt64(&c.nextRequestID, 1)
}

// noteActivity resets the liveness timer; called whenever a message
// arrives from the downstream's stdout.
func (c *Connection) noteActivity() {
	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()
	if c.livenessTimer != nil {
		c.livenessTimer.Reset(c.livenessTimeout)
	}
}

// armLiveness starts the liveness timer the first time pending count goes
// 0→1 in Ready state; firing transitions the connection to Failed and
// fails every pending request with InternalError.
func (c *Connection) armLiveness() {
	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()
	if c.livenessTimer != nil {
		return
	}
	c.livenessTimer = time.AfterFunc(c.livenessTimeout, func() {
		c.fail(fmt.Errorf("bridge: %s: liveness timeout after %s", c.Language, c.livenessTimeout))
	})
}

func (c *Connection) disarmLiveness() {
	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()
	if c.livenessTimer != nil {
		c.livenessTimer.Stop()
		c.livenessTimer = nil
	}
}

// fail transitions the connection to Failed and fails every pending
// request with InternalError, per the DownstreamIO/Timeout propagation
// rule. Idempotent: a connection already Failed or Closed is unaffected.
func (c *Connection) fail(cause error) {
	if !c.state.transition(Failed) {
		return
	}
	c.log.Warn("bridge connection failed",
		zap.String("language", c.Language), zap.String("connectionID", c.ID), zap.Error(cause))
	c.pend.FailAll(fmt.Errorf("internal error: %w", cause))
	c.disarmLiveness()
}

// RegisterCapability records one capability key. handshake calls it for
// each top-level key of the initialize result's capabilities object;
// Forward does not consult the recorded set.
func (c *Connection) RegisterCapability(method string) {
	c.capMu.Lock()
	c.capabilities[method] = true
	c.capMu.Unlock()
}

// SupportsMethod reports whether method was recorded by RegisterCapability.
func (c *Connection) SupportsMethod(method string) bool {
	c.capMu.Lock()
	defer c.capMu.Unlock()
	return c.capabilities[method]
}

func (c *Connection) markOpened(uri string, version int) {
	c.openMu.Lock()
	c.openDocuments[uri] = version
	c.openMu.Unlock()
}

func (c *Connection) lastSentVersion(uri string) (int, bool) {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	v, ok := c.openDocuments[uri]
	return v, ok
}

func (c *Connection) forgetDocument(uri string) {
	c.openMu.Lock()
	delete(c.openDocuments, uri)
	c.openMu.Unlock()
}
