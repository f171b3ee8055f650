package llm

import (
	"encoding/json"
	"testing"
)

func TestBuildAnthropicMessagesGroupsToolResults(t *testing.T) {
	calls := []ToolCall{
		{ID: "a", Name: "read_file", Arguments: json.RawMessage(`{"file_path":"x"}`)},
		{ID: "b", Name: "execute_bash", Arguments: json.RawMessage(`not json`)},
	}
	messages := []Message{
		SystemText("first"),
		SystemText("second"),
		UserText("hello"),
		buildAssistantMessage("working", calls),
		ToolResultMessage("a", "read_file", "data"),
		ToolErrorMessage("b", "execute_bash", "Error: nope"),
	}

	system, out := buildAnthropicMessages(messages)
	if system != "first\n\nsecond" {
		t.Fatalf("system=%q", system)
	}
	if len(out) != 3 {
		t.Fatalf("got %d messages, want user, assistant, tool results", len(out))
	}
	if len(out[1].Content) != 3 {
		t.Fatalf("assistant blocks=%d, want text + 2 tool uses", len(out[1].Content))
	}
	results := out[2].Content
	if len(results) != 2 {
		t.Fatalf("tool result blocks=%d, want 2", len(results))
	}
	if results[0].OfToolResult == nil || results[0].OfToolResult.ToolUseID != "a" {
		t.Fatalf("first result=%+v", results[0])
	}
	if !results[1].OfToolResult.IsError.Value {
		t.Fatal("error result not flagged")
	}
}

func TestToolInputFallsBackToEmptyObject(t *testing.T) {
	if got := string(toolInput(json.RawMessage(`{"a":1}`))); got != `{"a":1}` {
		t.Fatalf("valid input changed: %s", got)
	}
	for _, in := range []string{"", "{oops"} {
		if got := string(toolInput(json.RawMessage(in))); got != "{}" {
			t.Fatalf("toolInput(%q)=%s", in, got)
		}
	}
}

func TestMapAnthropicStopReason(t *testing.T) {
	tests := map[string]StopReason{
		"end_turn":      StopEndTurn,
		"stop_sequence": StopEndTurn,
		"tool_use":      StopToolCalls,
		"max_tokens":    StopMaxTokens,
		"refusal":       StopOther,
	}
	for in, want := range tests {
		if got := mapAnthropicStopReason(in); got != want {
			t.Errorf("mapAnthropicStopReason(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestBuildAnthropicToolChoice(t *testing.T) {
	required := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceRequired}, false)
	if required.OfAny == nil || !required.OfAny.DisableParallelToolUse.Value {
		t.Fatalf("required choice=%+v", required)
	}
	auto := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceAuto}, true)
	if auto.OfAuto == nil || auto.OfAuto.DisableParallelToolUse.Value {
		t.Fatalf("auto choice=%+v", auto)
	}
	if none := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceNone}, true); none.OfNone == nil {
		t.Fatal("none choice not mapped")
	}
}

func TestBuildAnthropicTools(t *testing.T) {
	tools := buildAnthropicTools([]ToolSpec{{
		Name:        "read_file",
		Description: "Read a file",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"file_path": map[string]any{"type": "string"}},
			"required":   []any{"file_path"},
		},
	}})
	if len(tools) != 1 || tools[0].OfTool == nil {
		t.Fatalf("tools=%+v", tools)
	}
	if tools[0].OfTool.Name != "read_file" {
		t.Fatalf("name=%q", tools[0].OfTool.Name)
	}
	if got := tools[0].OfTool.InputSchema.Required; len(got) != 1 || got[0] != "file_path" {
		t.Fatalf("required=%v", got)
	}
}
