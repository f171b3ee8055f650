package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultStartupTimeout bounds each server's handshake and tool listing.
const DefaultStartupTimeout = 10 * time.Second

// Options tune the orchestrator. Zero values select the defaults.
type Options struct {
	StartupTimeout time.Duration
	CallTimeout    time.Duration
	Transport      TransportFactory
}

func (o Options) withDefaults() Options {
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = DefaultStartupTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Transport == nil {
		o.Transport = DefaultTransport
	}
	return o
}

// ServerState is a snapshot of one server's worker.
type ServerState struct {
	Name  string
	State WorkerState
	Tools int
	Error error
}

// StatusUpdate is sent when a server's state changes.
type StatusUpdate struct {
	Name  string
	State WorkerState
	Error error
}

// Orchestrator launches one worker per configured server and exposes their
// tools through a single registry and call interface.
type Orchestrator struct {
	config   *Config
	opts     Options
	registry *Registry
	router   *Router

	mu       sync.RWMutex
	workers  map[string]*worker
	launched bool
	closed   bool
	cancel   context.CancelFunc

	statusMu   sync.Mutex
	statusChan chan StatusUpdate

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewOrchestrator creates an orchestrator for cfg. Nothing starts until Launch.
func NewOrchestrator(cfg *Config, opts Options) *Orchestrator {
	if cfg == nil {
		cfg = &Config{Servers: make(map[string]ServerConfig)}
	}
	opts = opts.withDefaults()
	return &Orchestrator{
		config:   cfg,
		opts:     opts,
		registry: NewRegistry(),
		router:   NewRouter(opts.CallTimeout),
		workers:  make(map[string]*worker),
	}
}

// SetStatusChannel sets a channel to receive state updates. Sends never
// block. Once SetStatusChannel(nil) returns, the previous channel receives
// nothing more and may be closed.
func (o *Orchestrator) SetStatusChannel(ch chan StatusUpdate) {
	o.statusMu.Lock()
	o.statusChan = ch
	o.statusMu.Unlock()
}

func (o *Orchestrator) sendStatus(name string, state WorkerState, err error) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	if o.statusChan == nil {
		return
	}
	select {
	case o.statusChan <- StatusUpdate{Name: name, State: state, Error: err}:
	default:
	}
}

// Launch starts every configured server and returns once each has either
// become ready or failed. Individual server failures are logged and visible
// through States; they do not fail Launch.
func (o *Orchestrator) Launch(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrShutdown
	}
	if o.launched {
		o.mu.Unlock()
		return errors.New("orchestrator already launched")
	}
	o.launched = true

	names := o.config.ServerNames()
	barrier := NewStartupBarrier(len(names))
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	for _, name := range names {
		w := newWorker(name, o.config.Servers[name], o.opts, o.router, o.sendStatus)
		o.workers[name] = w

		ep, err := o.router.Bind(name)
		if err != nil {
			herr := &HandshakeError{Server: name, Err: err}
			w.setState(StateFailed, herr)
			barrier.Report(name, herr)
			continue
		}

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w.run(workerCtx, ep, func(tools []ToolDescriptor, err error) {
				o.startupDone(barrier, name, tools, err)
			})
		}()
	}
	o.mu.Unlock()

	outcomes, err := barrier.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for MCP servers: %w", err)
	}
	for _, name := range names {
		if serr := outcomes[name]; serr != nil {
			slog.Warn("mcp server unavailable", "server", name, "error", serr)
			continue
		}
		slog.Info("mcp server ready", "server", name, "tools", o.registry.ToolCount(name))
	}
	return nil
}

// startupDone publishes a ready server's tools before releasing the barrier.
func (o *Orchestrator) startupDone(barrier *StartupBarrier, name string, tools []ToolDescriptor, err error) {
	if err == nil {
		if rerr := o.registry.Register(name, tools); rerr != nil {
			slog.Warn("mcp tool registration", "server", name, "error", rerr)
		}
	}
	barrier.Report(name, err)
}

// ListTools returns a snapshot of every registered tool.
func (o *Orchestrator) ListTools() []ToolDescriptor {
	return o.registry.List()
}

// CallTool invokes a qualified tool (mcp__<server>__<tool>). Failures are
// reported in the response; it never panics.
func (o *Orchestrator) CallTool(ctx context.Context, name string, args map[string]any) CallResponse {
	server, tool, ok := ParseQualifiedName(name)
	notFound := func(format string, a ...any) CallResponse {
		err := fmt.Errorf("%w: "+format, append([]any{ErrToolNotFound}, a...)...)
		return errorResponse("", &RoutingError{Server: server, Tool: name, Err: err})
	}
	if !ok {
		return notFound("malformed tool name")
	}

	o.mu.RLock()
	w := o.workers[server]
	closed := o.closed
	o.mu.RUnlock()

	if closed {
		return errorResponse("", &RoutingError{Server: server, Tool: name, Err: ErrShutdown})
	}
	if w == nil {
		return notFound("unknown server %s", server)
	}
	if !w.Live() {
		state, _ := w.State()
		return notFound("server %s has no live worker (%s)", server, state)
	}
	if _, ok := o.registry.Lookup(name); !ok {
		return notFound("server %s does not provide %s", server, tool)
	}

	return o.router.Call(ctx, server, CallRequest{Tool: tool, Arguments: args})
}

// States returns a snapshot of every server's worker, sorted by name.
func (o *Orchestrator) States() []ServerState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	states := make([]ServerState, 0, len(o.workers))
	for name, w := range o.workers {
		state, err := w.State()
		states = append(states, ServerState{
			Name:  name,
			State: state,
			Tools: o.registry.ToolCount(name),
			Error: err,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// Shutdown stops every worker and waits for them. It is safe to call more
// than once.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		cancel := o.cancel
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		o.wg.Wait()
		o.router.Close()
	})
}
