package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	clientName    = "pandora"
	clientVersion = "1.0.0"
)

// WorkerState is the lifecycle state of a server's worker.
type WorkerState string

const (
	StateLaunching   WorkerState = "launching"
	StateHandshaking WorkerState = "handshaking"
	StateReady       WorkerState = "ready"
	StateFailed      WorkerState = "failed"
	StateServing     WorkerState = "serving"
	StateTerminating WorkerState = "terminating"
	StateStopped     WorkerState = "stopped"
)

// startupReport is called exactly once per worker with the startup outcome.
type startupReport func(tools []ToolDescriptor, err error)

// worker owns one server's session for its whole life. The session is
// never shared; callers reach it through the router.
type worker struct {
	name           string
	config         ServerConfig
	newTransport   TransportFactory
	startupTimeout time.Duration
	router         *Router
	onState        func(name string, state WorkerState, err error)

	mu    sync.RWMutex
	state WorkerState
	err   error
}

func newWorker(name string, cfg ServerConfig, opts Options, router *Router, onState func(string, WorkerState, error)) *worker {
	return &worker{
		name:           name,
		config:         cfg,
		newTransport:   opts.Transport,
		startupTimeout: opts.StartupTimeout,
		router:         router,
		onState:        onState,
		state:          StateLaunching,
	}
}

// State returns the current lifecycle state and the last error, if any.
func (w *worker) State() (WorkerState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state, w.err
}

// Live reports whether the worker accepts calls.
func (w *worker) Live() bool {
	state, _ := w.State()
	return state == StateReady || state == StateServing
}

func (w *worker) setState(state WorkerState, err error) {
	w.mu.Lock()
	w.state = state
	if err != nil {
		w.err = err
	}
	w.mu.Unlock()
	slog.Debug("mcp worker state", "server", w.name, "state", state, "error", err)
	if w.onState != nil {
		w.onState(w.name, state, err)
	}
}

// run drives the worker from launch to stop. The report callback fires
// exactly once, whatever path the worker takes.
func (w *worker) run(ctx context.Context, ep *Endpoint, report startupReport) {
	reported := false
	reportOnce := func(tools []ToolDescriptor, err error) {
		if reported {
			return
		}
		reported = true
		report(tools, err)
	}
	defer w.router.Unbind(w.name)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker panic: %v", r)
			slog.Error("mcp worker crashed", "server", w.name, "error", err)
			if reported {
				w.setState(StateStopped, err)
			} else {
				w.setState(StateFailed, err)
			}
		}
		if !reported {
			reportOnce(nil, &HandshakeError{Server: w.name, Err: errors.New("worker exited before startup completed")})
		}
	}()

	// The process outlives ctx cancellation long enough for a graceful close.
	procCtx, stopProc := context.WithCancel(context.WithoutCancel(ctx))
	defer stopProc()

	session, tools, err := w.start(ctx, procCtx, stopProc)
	if err != nil {
		herr := &HandshakeError{Server: w.name, Err: err}
		w.setState(StateFailed, herr)
		reportOnce(nil, herr)
		return
	}

	reportOnce(tools, nil)
	w.setState(StateServing, nil)

	serveErr := w.serve(ctx, session, ep)
	w.setState(StateTerminating, serveErr)
	w.router.Unbind(w.name)
	if err := session.Close(); err != nil {
		slog.Debug("mcp session close", "server", w.name, "error", err)
	}
	stopProc()
	w.setState(StateStopped, nil)
}

// start connects, performs the handshake and lists tools within the
// startup timeout. The process is killed through stopProc as soon as the
// handshake deadline passes, so closing a stalled session does not wait
// for it to exit on its own.
func (w *worker) start(ctx, procCtx context.Context, stopProc context.CancelFunc) (*mcp.ClientSession, []ToolDescriptor, error) {
	transport, err := w.newTransport(procCtx, w.name, w.config)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	hsCtx, cancel := context.WithTimeout(ctx, w.startupTimeout)
	defer cancel()
	stopKill := context.AfterFunc(hsCtx, stopProc)

	observed := &connectObserver{
		inner:     transport,
		onConnect: func() { w.setState(StateHandshaking, nil) },
	}
	session, err := client.Connect(hsCtx, observed, nil)
	if err != nil {
		return nil, nil, w.startupError(hsCtx, "connect", err)
	}

	tools, err := w.listTools(hsCtx, session)
	if err != nil {
		session.Close()
		return nil, nil, w.startupError(hsCtx, "list tools", err)
	}

	if !stopKill() {
		session.Close()
		return nil, nil, w.startupError(hsCtx, "list tools", hsCtx.Err())
	}
	w.setState(StateReady, nil)
	return session, tools, nil
}

func (w *worker) startupError(hsCtx context.Context, op string, err error) error {
	if errors.Is(hsCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s during %s", ErrHandshakeTimeout, w.startupTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// listTools fetches every page of the server's tool list.
func (w *worker) listTools(ctx context.Context, session *mcp.ClientSession) ([]ToolDescriptor, error) {
	var tools []ToolDescriptor
	params := &mcp.ListToolsParams{}
	for {
		result, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range result.Tools {
			tools = append(tools, ToolDescriptor{
				Name:        QualifiedName(w.name, t.Name),
				Tool:        t.Name,
				Server:      w.name,
				Description: t.Description,
				Schema:      schemaMap(t.InputSchema),
			})
		}
		if result.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: result.NextCursor}
	}
}

// schemaMap normalizes an advertised input schema to a JSON object map.
func schemaMap(schema any) map[string]any {
	if m, ok := schema.(map[string]any); ok && m != nil {
		return m
	}
	if schema != nil {
		if data, err := json.Marshal(schema); err == nil {
			var m map[string]any
			if json.Unmarshal(data, &m) == nil && m != nil {
				return m
			}
		}
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// serve handles requests one at a time in arrival order until ctx is done
// or the session ends on its own.
func (w *worker) serve(ctx context.Context, session *mcp.ClientSession, ep *Endpoint) error {
	closed := make(chan error, 1)
	go func() { closed <- session.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			if err == nil {
				err = errors.New("session closed")
			}
			slog.Warn("mcp server exited", "server", w.name, "error", err)
			return fmt.Errorf("server exited: %w", err)
		case env := <-ep.Requests():
			if env.Context().Err() != nil {
				slog.Debug("dropping abandoned mcp request", "server", w.name, "id", env.Request().ID)
				continue
			}
			env.Reply(w.handle(ctx, session, env))
		}
	}
}

func (w *worker) handle(ctx context.Context, session *mcp.ClientSession, env *Envelope) CallResponse {
	req := env.Request()

	callCtx, cancel := context.WithCancel(env.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      req.Tool,
		Arguments: args,
	})
	if err != nil {
		return errorResponse(req.ID, fmt.Errorf("call tool %s: %w", req.Tool, err))
	}

	text := formatContent(result.Content)
	if result.IsError {
		return errorResponse(req.ID, fmt.Errorf("tool %s returned error: %s", req.Tool, text))
	}
	return CallResponse{
		ID:            req.ID,
		Status:        StatusSuccess,
		Content:       text,
		ContentBlocks: contentBlocks(result.Content),
	}
}

// formatContent converts MCP content to a string.
func formatContent(content []mcp.Content) string {
	var b strings.Builder
	for _, c := range content {
		switch v := c.(type) {
		case *mcp.TextContent:
			b.WriteString(v.Text)
		default:
			if data, err := json.Marshal(c); err == nil {
				b.Write(data)
			}
		}
	}
	return b.String()
}

func contentBlocks(content []mcp.Content) []json.RawMessage {
	blocks := make([]json.RawMessage, 0, len(content))
	for _, c := range content {
		if data, err := json.Marshal(c); err == nil {
			blocks = append(blocks, data)
		}
	}
	return blocks
}
