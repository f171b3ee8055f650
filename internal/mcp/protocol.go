package mcp

import "encoding/json"

// ToolDescriptor describes a tool advertised by an MCP server.
type ToolDescriptor struct {
	Name        string // qualified: mcp__<server>__<tool>
	Tool        string // name as known to the server
	Server      string
	Description string
	Schema      map[string]any
}

// CallStatus is the outcome of a routed call.
type CallStatus string

const (
	StatusSuccess CallStatus = "success"
	StatusError   CallStatus = "error"
)

// CallRequest is sent from the router to a worker.
type CallRequest struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallResponse is the single reply to a CallRequest.
type CallResponse struct {
	ID            string            `json:"id"`
	Status        CallStatus        `json:"status"`
	Content       string            `json:"content,omitempty"`
	ContentBlocks []json.RawMessage `json:"content_blocks,omitempty"`
	Error         string            `json:"error,omitempty"`

	// Err carries the typed error in-process; it is not serialized.
	Err error `json:"-"`
}

// OK reports whether the call succeeded.
func (r CallResponse) OK() bool {
	return r.Status == StatusSuccess
}

func errorResponse(id string, err error) CallResponse {
	return CallResponse{
		ID:     id,
		Status: StatusError,
		Error:  err.Error(),
		Err:    err,
	}
}
