package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/pandora-agent/pandora/internal/llm"
	"github.com/pandora-agent/pandora/internal/mcp"
)

type nopProvider struct{}

func (nopProvider) Name() string { return "nop" }

func (nopProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return nil, context.Canceled
}

func specNames(specs []llm.ToolSpec) map[string]bool {
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		names[spec.Name] = true
	}
	return names
}

func TestNewAgentEngine(t *testing.T) {
	orchestrator := mcp.NewOrchestrator(&mcp.Config{Servers: map[string]mcp.ServerConfig{}}, mcp.Options{})
	defer orchestrator.Shutdown()

	cfg := baseConfig()
	engine, err := newAgentEngine(cfg, nopProvider{}, orchestrator, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	names := specNames(engine.ToolSpecs())
	for _, want := range []string{"print_message", "read_file", "execute_bash", "edit_file", "generate_plan"} {
		if !names[want] {
			t.Errorf("missing tool %s in %v", want, names)
		}
	}
}

func TestNewAgentEngineRestrictsTools(t *testing.T) {
	orchestrator := mcp.NewOrchestrator(&mcp.Config{Servers: map[string]mcp.ServerConfig{}}, mcp.Options{})
	defer orchestrator.Shutdown()

	cfg := baseConfig()
	cfg.Agent.Tools = []string{"read_file", "apply_regex"}
	cfg.Agent.AllowedTools = []string{"read_*"}
	engine, err := newAgentEngine(cfg, nopProvider{}, orchestrator, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	names := specNames(engine.ToolSpecs())
	if len(names) != 2 || !names["read_file"] || !names["print_message"] {
		t.Fatalf("tools=%v", names)
	}

	cfg.Agent.Tools = []string{"no_such_tool"}
	if _, err := newAgentEngine(cfg, nopProvider{}, orchestrator, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
