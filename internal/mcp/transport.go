package mcp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransportFactory builds the client transport for one configured server.
// ctx bounds the lifetime of any process the transport starts.
type TransportFactory func(ctx context.Context, name string, cfg ServerConfig) (mcp.Transport, error)

// DefaultTransport spawns stdio servers as subprocesses and connects to
// http servers with the streamable HTTP transport.
func DefaultTransport(ctx context.Context, name string, cfg ServerConfig) (mcp.Transport, error) {
	if cfg.TransportType() == "http" {
		return createHTTPTransport(cfg), nil
	}
	return createStdioTransport(ctx, name, cfg), nil
}

// createStdioTransport builds the subprocess command. With no env overrides
// cmd.Env stays nil so the child inherits the parent environment unchanged.
func createStdioTransport(ctx context.Context, name string, cfg ServerConfig) mcp.Transport {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		keys := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmd.Env = os.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, cfg.Env[k]))
		}
	}
	cmd.Stderr = &stderrLogger{server: name}
	return &mcp.CommandTransport{Command: cmd}
}

func createHTTPTransport(cfg ServerConfig) mcp.Transport {
	client := http.DefaultClient
	if len(cfg.Headers) > 0 {
		client = &http.Client{Transport: &headerTransport{headers: cfg.Headers, base: http.DefaultTransport}}
	}
	return &mcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: client}
}

// headerTransport adds configured headers to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// connectObserver calls onConnect once the wrapped transport is connected,
// which for stdio servers means the process has been spawned.
type connectObserver struct {
	inner     mcp.Transport
	onConnect func()
}

func (t *connectObserver) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}
	t.onConnect()
	return conn, nil
}

// stderrLogger forwards a server's stderr to the debug log, one line at a time.
type stderrLogger struct {
	server string
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Write(line)
			break
		}
		slog.Debug("mcp server stderr", "server", w.server, "line", string(bytes.TrimRight(line, "\r\n")))
	}
	return len(p), nil
}
