package server

import (
	"context"
	"sync"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/events"
	"github.com/teemow/inboxsweeper/internal/instrumentation"
	"github.com/teemow/inboxsweeper/internal/token"
)

// ServerContext bundles the long-lived dependencies the MCP server and
// its tools operate on: the job queue, the token manager, the action
// log and the events bus.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	queue     *engine.Queue
	tokens    *token.Manager
	actionLog *actionlog.Store
	bus       *events.Bus
	mailbox   engine.Mailbox
	metrics   *instrumentation.Metrics

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context wrapping the given
// dependencies. Any of them may be nil when the corresponding feature
// is not wired (tests, partial CLI runs).
func NewServerContext(ctx context.Context, queue *engine.Queue, tokens *token.Manager, actionLog *actionlog.Store, bus *events.Bus) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		queue:     queue,
		tokens:    tokens,
		actionLog: actionLog,
		bus:       bus,
	}
}

// Context returns the server's base context, cancelled on shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Queue returns the job queue.
func (sc *ServerContext) Queue() *engine.Queue {
	return sc.queue
}

// TokenManager returns the access token manager.
func (sc *ServerContext) TokenManager() *token.Manager {
	return sc.tokens
}

// ActionLog returns the persistent action log store.
func (sc *ServerContext) ActionLog() *actionlog.Store {
	return sc.actionLog
}

// Bus returns the events bus.
func (sc *ServerContext) Bus() *events.Bus {
	return sc.bus
}

// SetMailbox attaches the Gmail client used by read-only lookups such
// as mailbox statistics. Call before the server starts handling
// requests.
func (sc *ServerContext) SetMailbox(m engine.Mailbox) {
	sc.mailbox = m
}

// Mailbox returns the attached Gmail client, or nil when none is
// wired.
func (sc *ServerContext) Mailbox() engine.Mailbox {
	return sc.mailbox
}

// SetMetrics attaches the domain metrics recorder. Call before the
// server starts handling requests.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.metrics = m
}

// Metrics returns the domain metrics recorder, or nil when
// instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than
// once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
