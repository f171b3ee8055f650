package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound means the name does not resolve to a live server's tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrServerUnavailable means no worker is bound for the server.
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrCallTimeout means the worker did not reply within the call timeout.
	ErrCallTimeout = errors.New("timeout waiting for tool response")
	// ErrStaleResponse means a reply carried a foreign correlation id.
	ErrStaleResponse = errors.New("response correlation id mismatch")
	// ErrHandshakeTimeout means the server did not finish the handshake in time.
	ErrHandshakeTimeout = errors.New("handshake timed out")
	// ErrShutdown is returned once the orchestrator has been shut down.
	ErrShutdown = errors.New("orchestrator is shut down")
)

// ConfigError reports a malformed server configuration. It is fatal at startup.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid MCP config: %v", e.Err)
	}
	return fmt.Sprintf("invalid MCP config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// HandshakeError reports a server that failed to start. The server
// contributes zero tools; other servers are unaffected.
type HandshakeError struct {
	Server string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("MCP server %s failed to start: %v", e.Server, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// RoutingError reports a call that could not be delivered or answered.
type RoutingError struct {
	Server string
	Tool   string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Server == "" || errors.Is(e.Err, ErrToolNotFound) {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("call %s on %s: %v", e.Tool, e.Server, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }
