package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pandora-agent/pandora/internal/llm"
)

// EngineTools exposes the orchestrator's tools to the dispatch engine.
type EngineTools struct {
	orchestrator *Orchestrator
}

// NewEngineTools adapts o to llm.RemoteTools.
func NewEngineTools(o *Orchestrator) *EngineTools {
	return &EngineTools{orchestrator: o}
}

var _ llm.RemoteTools = (*EngineTools)(nil)

// Owns reports whether name belongs to an external server.
func (t *EngineTools) Owns(name string) bool {
	return IsQualifiedName(name)
}

// Specs returns the current registry snapshot as tool specs.
func (t *EngineTools) Specs() []llm.ToolSpec {
	tools := t.orchestrator.ListTools()
	specs := make([]llm.ToolSpec, 0, len(tools))
	for _, tool := range tools {
		desc := tool.Description
		if desc == "" {
			desc = tool.Tool
		}
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name,
			Description: fmt.Sprintf("[%s] %s", tool.Server, desc),
			Schema:      tool.Schema,
		})
	}
	return specs
}

// Call routes a tool call to its server and returns the text content.
func (t *EngineTools) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	var arguments map[string]any
	if len(bytes.TrimSpace(args)) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
	}
	resp := t.orchestrator.CallTool(ctx, name, arguments)
	if resp.OK() {
		return resp.Content, nil
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return "", errors.New(resp.Error)
}
