package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCallTimeout bounds how long a caller waits for a worker's reply.
const DefaultCallTimeout = 60 * time.Second

// Envelope carries one request to a worker and its single reply back.
type Envelope struct {
	ctx   context.Context
	req   CallRequest
	reply chan CallResponse
	once  sync.Once
}

// Context is done once the caller has given up on this request.
func (e *Envelope) Context() context.Context { return e.ctx }

// Request returns the call request.
func (e *Envelope) Request() CallRequest { return e.req }

// Reply delivers the response. Only the first reply is kept; it never blocks.
func (e *Envelope) Reply(resp CallResponse) {
	e.once.Do(func() {
		e.reply <- resp
	})
}

// Endpoint is a worker's inbound address on the router.
type Endpoint struct {
	Server  string
	Address string

	inbox     chan *Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// Requests yields envelopes in arrival order.
func (ep *Endpoint) Requests() <-chan *Envelope { return ep.inbox }

// Done is closed when the endpoint is unbound.
func (ep *Endpoint) Done() <-chan struct{} { return ep.done }

func (ep *Endpoint) close() {
	ep.closeOnce.Do(func() { close(ep.done) })
}

// Router is an addressed request/reply bus between callers and workers.
// Each server has exactly one bound endpoint.
type Router struct {
	mu          sync.RWMutex
	endpoints   map[string]*Endpoint
	callTimeout time.Duration
	closed      bool
}

// NewRouter creates a router. A non-positive timeout uses DefaultCallTimeout.
func NewRouter(callTimeout time.Duration) *Router {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Router{
		endpoints:   make(map[string]*Endpoint),
		callTimeout: callTimeout,
	}
}

// Bind creates the inbound endpoint for a server.
func (r *Router) Bind(server string) (*Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrShutdown
	}
	if _, exists := r.endpoints[server]; exists {
		return nil, fmt.Errorf("endpoint for %s already bound", server)
	}
	ep := &Endpoint{
		Server:  server,
		Address: "inproc://mcp/" + server,
		inbox:   make(chan *Envelope),
		done:    make(chan struct{}),
	}
	r.endpoints[server] = ep
	return ep, nil
}

// Unbind removes a server's endpoint. Waiting and future callers get
// ErrServerUnavailable.
func (r *Router) Unbind(server string) {
	r.mu.Lock()
	ep, ok := r.endpoints[server]
	delete(r.endpoints, server)
	r.mu.Unlock()
	if ok {
		ep.close()
	}
}

// Close unbinds every endpoint and rejects new bindings.
func (r *Router) Close() {
	r.mu.Lock()
	eps := r.endpoints
	r.endpoints = make(map[string]*Endpoint)
	r.closed = true
	r.mu.Unlock()
	for _, ep := range eps {
		ep.close()
	}
}

// Bound reports whether a server currently has an endpoint.
func (r *Router) Bound(server string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.endpoints[server]
	return ok
}

// Call sends req to the server's worker and waits for the matching reply.
// It always returns exactly one response; failures carry a *RoutingError.
func (r *Router) Call(ctx context.Context, server string, req CallRequest) CallResponse {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	fail := func(err error) CallResponse {
		return errorResponse(req.ID, &RoutingError{Server: server, Tool: req.Tool, Err: err})
	}

	r.mu.RLock()
	ep, ok := r.endpoints[server]
	r.mu.RUnlock()
	if !ok {
		return fail(ErrServerUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	env := &Envelope{
		ctx:   callCtx,
		req:   req,
		reply: make(chan CallResponse, 1),
	}

	select {
	case ep.inbox <- env:
	case <-ep.done:
		return fail(ErrServerUnavailable)
	case <-callCtx.Done():
		return fail(r.waitError(ctx, callCtx))
	}

	select {
	case resp := <-env.reply:
		return r.checkReply(req, resp, fail)
	case <-ep.done:
		select {
		case resp := <-env.reply:
			return r.checkReply(req, resp, fail)
		default:
		}
		return fail(ErrServerUnavailable)
	case <-callCtx.Done():
		return fail(r.waitError(ctx, callCtx))
	}
}

func (r *Router) checkReply(req CallRequest, resp CallResponse, fail func(error) CallResponse) CallResponse {
	if resp.ID != req.ID {
		return fail(ErrStaleResponse)
	}
	return resp
}

// waitError distinguishes caller cancellation from the router's own timeout.
func (r *Router) waitError(parent, callCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrCallTimeout, r.callTimeout)
	}
	return callCtx.Err()
}
