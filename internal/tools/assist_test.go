package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pandora-agent/pandora/internal/llm"
)

type textStream struct {
	events []llm.Event
}

func (s *textStream) Recv() (llm.Event, error) {
	if len(s.events) == 0 {
		return llm.Event{}, io.EOF
	}
	event := s.events[0]
	s.events = s.events[1:]
	return event, nil
}

func (s *textStream) Close() error { return nil }

// cannedProvider answers every request with a fixed reply.
type cannedProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.Request
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &textStream{events: []llm.Event{
		{Type: llm.EventTextDelta, Text: p.reply},
		{Type: llm.EventDone, StopReason: llm.StopEndTurn},
	}}, nil
}

func TestEditFileTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	os.WriteFile(path, []byte("package main\n"), 0o644)

	provider := &cannedProvider{reply: "```go\npackage main\n\nfunc main() {}\n```"}
	tool := NewEditFileTool(provider, "default-model")

	out, err := tool.Execute(context.Background(), mustArgs(t, EditFileArgs{
		FilePath:         path,
		EditInstructions: "add a main function",
		Context:          "keep it minimal",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "was edited") {
		t.Fatalf("output=%q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "package main\n\nfunc main() {}\n" {
		t.Fatalf("content=%q", data)
	}

	req := provider.reqs[0]
	if req.Model != "default-model" {
		t.Fatalf("model=%q", req.Model)
	}
	prompt := req.Messages[1].Parts[0].Text
	for _, want := range []string{"add a main function", "keep it minimal", "package main"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEditFileToolErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	os.WriteFile(path, []byte("original"), 0o644)

	tool := NewEditFileTool(&cannedProvider{err: errors.New("401 unauthorized")}, "m")
	if _, err := tool.Execute(context.Background(), mustArgs(t, EditFileArgs{FilePath: path, EditInstructions: "x"})); err == nil {
		t.Fatal("expected provider error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Fatalf("file modified after failure: %q", data)
	}

	_, err := tool.Execute(context.Background(), mustArgs(t, EditFileArgs{FilePath: path + ".missing", EditInstructions: "x"}))
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Type != ErrFileNotFound {
		t.Fatalf("err=%v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"plain text":               "plain text",
		"```\nbody\n```":           "body\n",
		"```python\nx = 1\n```\n":  "x = 1\n",
		"```inline```":             "```inline```",
		"text with ``` in middle":  "text with ``` in middle",
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestWebSearchTool(t *testing.T) {
	provider := &cannedProvider{reply: "Go 1.25 was released in August."}
	tool := NewWebSearchTool(provider)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"latest go release","search_context_size":"low"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Go 1.25 was released in August." {
		t.Fatalf("output=%q", out)
	}
	req := provider.reqs[0]
	if req.Model != defaultSearchModel || req.SearchContextSize != "low" || req.MaxOutputTokens != defaultSearchMaxTokens {
		t.Fatalf("request=%+v", req)
	}
	if len(req.Tools) != 0 {
		t.Fatal("search request should not offer tools")
	}

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x","search_context_size":"huge"}`)); err == nil {
		t.Fatal("expected invalid search_context_size error")
	}
}

func TestGeneratePlanTool(t *testing.T) {
	provider := &cannedProvider{reply: "1. Do it"}
	tool := NewGeneratePlanTool(provider, "gpt-4.1")

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"task":"ship the release","model":"o3","reasoning_effort":"high"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "1. Do it" {
		t.Fatalf("output=%q", out)
	}
	req := provider.reqs[0]
	if req.Model != "o3" || req.ReasoningEffort != "high" {
		t.Fatalf("request model=%q effort=%q", req.Model, req.ReasoningEffort)
	}
	if !strings.Contains(req.Messages[1].Parts[0].Text, "ship the release") {
		t.Fatal("task missing from prompt")
	}

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"task":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if req := provider.reqs[1]; req.Model != "gpt-4.1" || req.ReasoningEffort != "" {
		t.Fatalf("default request model=%q effort=%q", req.Model, req.ReasoningEffort)
	}

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"task":""}`)); err == nil {
		t.Fatal("expected error for empty task")
	}
}
