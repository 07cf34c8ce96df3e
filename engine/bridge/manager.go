package bridge

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/internal/notifybus"
	"github.com/tsls/treesitter-ls/internal/virtualuri"
	"github.com/tsls/treesitter-ls/pkg/resilience"
)

// Manager maintains the (language name) → downstream connection map,
// lazily spawning and initializing connections, forwarding requests with
// translated coordinates and synthesized virtual documents, and handling
// superseding and shutdown.
type Manager struct {
	spawn Spawner
	log   *zap.Logger
	bus   *notifybus.Bus

	livenessTimeout time.Duration
	shutdownCeiling time.Duration

	mu          sync.Mutex
	connections map[string]*Connection
	breakers    map[string]*resilience.Breaker

	supersede *supersedeTracker
}

// Options configures a Manager. Zero values fall back to the spec's
// documented defaults (60s liveness, 10s shutdown ceiling).
type Options struct {
	LivenessTimeout time.Duration
	ShutdownCeiling time.Duration
}

func DefaultOptions() Options {
	return Options{LivenessTimeout: DefaultLivenessTimeout, ShutdownCeiling: 10 * time.Second}
}

// NewManager constructs a Manager. spawn is called lazily the first time a
// language is requested; bus is stored on the Manager, but nothing
// publishes to it, so downstream notifications are not forwarded.
func NewManager(spawn Spawner, bus *notifybus.Bus, log *zap.Logger, opts Options) *Manager {
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = DefaultLivenessTimeout
	}
	if opts.ShutdownCeiling <= 0 {
		opts.ShutdownCeiling = 10 * time.Second
	}
	return &Manager{
		spawn:           spawn,
		log:             log,
		bus:             bus,
		livenessTimeout: opts.LivenessTimeout,
		shutdownCeiling: opts.ShutdownCeiling,
		connections:     map[string]*Connection{},
		breakers:        map[string]*resilience.Breaker{},
		supersede:       newSupersedeTracker(),
	}
}

// breakerFor returns (creating if needed) the respawn circuit breaker for
// language. Three consecutive spawn-or-handshake failures trip it; it stays
// open for 5s before allowing one half-open probe respawn.
func (m *Manager) breakerFor(language string) *resilience.Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[language]
	if !ok {
		b = resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 3, Timeout: 5 * time.Second, HalfOpenMax: 1})
		m.breakers[language] = b
	}
	return b
}

// getOrCreate returns the connection for language, spawning and performing
// the initialize/initialized handshake if this is the first request for
// it. Concurrent callers for the same never-seen language race to spawn;
// the loser's connection is discarded in favor of the one that won the
// map insert, and its process is killed.
func (m *Manager) getOrCreate(ctx context.Context, language string) (*Connection, error) {
	m.mu.Lock()
	if c, ok := m.connections[language]; ok && c.State() != Failed {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	breaker := m.breakerFor(language)
	var c *Connection
	spawnErr := breaker.Call(ctx, func(ctx context.Context) error {
		conn, cmd, err := m.spawn(ctx, language)
		if err != nil {
			return fmt.Errorf("spawn: %w", err)
		}
		nc := newConnection(language, conn, cmd, m.log, m.livenessTimeout)
		go m.runReader(nc)

		if err := m.handshake(ctx, nc); err != nil {
			nc.fail(err)
			return fmt.Errorf("initialize: %w", err)
		}
		nc.state.transition(Ready)
		c = nc
		return nil
	})
	if spawnErr != nil {
		return nil, fmt.Errorf("bridge: %s: %w", language, spawnErr)
	}

	m.mu.Lock()
	if existing, ok := m.connections[language]; ok && existing.State() != Failed {
		m.mu.Unlock()
		c.state.transition(Closed)
		_ = c.conn.Close()
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		return existing, nil
	}
	m.connections[language] = c
	m.mu.Unlock()
	return c, nil
}

func (m *Manager) handshake(ctx context.Context, c *Connection) error {
	params := map[string]any{
		"processId":    nil,
		"rootUri":      nil,
		"capabilities": map[string]any{},
	}
	var result map[string]any
	if _, err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	if caps, ok := result["capabilities"].(map[string]any); ok {
		for k := range caps {
			c.RegisterCapability(k)
		}
	}
	return c.conn.Notify(ctx, "initialized", map[string]any{})
}

// runReader is the single reader task per downstream connection: it is
// driven by jsonrpc2's own dispatch loop via a Handler passed at spawn
// time in the real wiring; here it simply blocks until the connection's
// Done channel closes, then fails any requests still pending, satisfying
// the "reader task independent, drives its own response router" model for
// callers that construct Manager with a bespoke jsonrpc2.Conn whose
// handler is installed by the Spawner.
func (m *Manager) runReader(c *Connection) {
	<-c.conn.Done()
	c.fail(fmt.Errorf("bridge: %s: downstream connection closed", c.Language))
}

// Open ensures a downstream connection exists for language and that a
// virtual document for regionID is open on it, returning the virtual URI
// to use in subsequent Forward calls. internal/server calls this once per
// region before the region's first forwarded request, so callers never
// need a *Connection of their own.
func (m *Manager) Open(ctx context.Context, language, regionID, hostURI, content string) (virtualURI string, err error) {
	c, err := m.getOrCreate(ctx, language)
	if err != nil {
		return "", err
	}
	return m.EnsureOpen(ctx, c, language, regionID, hostURI, content)
}

// Sync sends an already-open virtual document's updated content downstream,
// for regions whose underlying text changed since the last forwarded
// request.
func (m *Manager) Sync(ctx context.Context, language, virtualURI, content string) error {
	c, err := m.getOrCreate(ctx, language)
	if err != nil {
		return err
	}
	return m.SendChange(ctx, c, virtualURI, content)
}

// EnsureOpen synthesizes or reuses a virtual document URI for region, and
// sends didOpen (first time) or didChange (content changed since last
// send) before a request can be forwarded against it.
func (m *Manager) EnsureOpen(ctx context.Context, c *Connection, language, regionID, hostURI, content string) (virtualURI string, err error) {
	virtualURI = virtualuri.Build(language, regionID, hostURI)
	if _, opened := c.lastSentVersion(virtualURI); !opened {
		err = c.conn.Notify(ctx, "textDocument/didOpen", map[string]any{
			"textDocument": map[string]any{
				"uri":        virtualURI,
				"languageId": language,
				"version":    1,
				"text":       content,
			},
		})
		if err == nil {
			c.markOpened(virtualURI, 1)
		}
		return virtualURI, err
	}
	return virtualURI, nil
}

// SendChange sends a full-sync didChange with an incremented version for
// an already-open virtual document whose underlying region content has
// changed.
func (m *Manager) SendChange(ctx context.Context, c *Connection, virtualURI, content string) error {
	version, _ := c.lastSentVersion(virtualURI)
	version++
	err := c.conn.Notify(ctx, "textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": virtualURI, "version": version},
		"contentChanges": []any{map[string]any{"text": content}},
	})
	if err == nil {
		c.markOpened(virtualURI, version)
	}
	return err
}

// Forward sends method with params to the downstream connection for
// language, applying superseding to completion/signatureHelp requests and
// translating the decoded result's coordinates back to host space.
//
// For a supersedable method, this request's arrival immediately cancels
// whatever earlier request of the same class is still in flight for this
// document — that earlier call's Forward returns ErrSuperseded as soon as
// its now-canceled context unblocks it, rather than waiting for its
// downstream round trip to finish and only then being told it was stale.
// Per spec.md §4.8/§5, a request must never be left in flight after a
// newer one of its class has superseded it.
func (m *Manager) Forward(ctx context.Context, language, documentURI, method string, params any, hostStartLine int, virtualURI, hostURI string) (any, error) {
	c, err := m.getOrCreate(ctx, language)
	if err != nil {
		return nil, err
	}

	supersedable := isSupersedable(method)
	callCtx := ctx
	var gen int64
	if supersedable {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithCancel(ctx)
		gen = m.supersede.Begin(documentURI, method, cancel)
		defer m.supersede.Done(documentURI, method, gen)
	}

	id := c.nextID()
	c.pend.Register(id)
	if c.pend.Len() == 1 {
		c.armLiveness()
	}

	translated := TranslateRequest(params, hostStartLine, hostURI, virtualURI)
	var raw any
	_, callErr := c.conn.Call(callCtx, method, translated, &raw)
	c.pend.Cancel(id) // jsonrpc2.Call already delivered synchronously; clear the bookkeeping entry

	if supersedable && callCtx.Err() != nil {
		return nil, &ErrSuperseded{Method: method}
	}
	if callErr != nil {
		c.fail(callErr)
		return nil, fmt.Errorf("bridge: %s: %w", language, callErr)
	}
	c.disarmLivenessIfIdle()
	return TranslateResponse(raw, hostStartLine, virtualURI, hostURI), nil
}

func (c *Connection) disarmLivenessIfIdle() {
	if c.pend.Len() == 0 {
		c.disarmLiveness()
	}
}

// Cancel propagates a client $/cancelRequest to the downstream counterpart
// and removes the pending entry so a late response is dropped.
func (m *Manager) Cancel(ctx context.Context, language string, downstreamID int64) {
	m.mu.Lock()
	c, ok := m.connections[language]
	m.mu.Unlock()
	if !ok {
		return
	}
	c.pend.Cancel(downstreamID)
	_ = c.conn.Notify(ctx, "$/cancelRequest", map[string]any{"id": downstreamID})
}

// Shutdown gracefully shuts down every connection in parallel, bounded by
// the global shutdown ceiling; connections still running when it expires
// are force-killed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.shutdownCeiling)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			m.shutdownOne(ctx, c)
		}(c)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range conns {
			if c.State() != Closed {
				forceKill(c)
			}
		}
		return ctx.Err()
	}
}

func (m *Manager) shutdownOne(ctx context.Context, c *Connection) {
	if c.State() == Failed {
		return
	}
	c.state.transition(Closing)
	_, _ = c.conn.Call(ctx, "shutdown", nil, nil)
	_ = c.conn.Notify(ctx, "exit", nil)
	c.state.transition(Closed)
}

// forceKill implements the SIGTERM → 2s grace → SIGKILL path for a
// connection still running when the global shutdown ceiling expires.
func forceKill(c *Connection) {
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	_ = c.cmd.Process.Signal(syscall.SIGTERM)
	go func(proc *os.Process) {
		time.Sleep(2 * time.Second)
		_ = proc.Kill()
	}(c.cmd.Process)
	c.pend.FailAll(fmt.Errorf("internal error: %s: force-killed at shutdown ceiling", c.Language))
}

var _ jsonrpc2.Conn // referenced for the Spawner type signature above
