package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFragmentAggregatorInterleaved(t *testing.T) {
	agg := NewFragmentAggregator()
	fragments := []ToolCallFragment{
		{Index: 1, ID: "call_b", Name: "read_file", Arguments: `{"file_`},
		{Index: 0, ID: "call_a", Name: "print_message", Arguments: `{"message":`},
		{Index: 1, Arguments: `path":"a.txt"}`},
		{Index: 0, Arguments: `"hi","message_type":"reply"}`},
	}
	for _, f := range fragments {
		if err := agg.Add(f); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if agg.Len() != 2 {
		t.Fatalf("Len()=%d, want 2", agg.Len())
	}

	calls := agg.Seal()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Call.Name != "print_message" || calls[0].Call.ID != "call_a" {
		t.Fatalf("call 0 = %+v", calls[0].Call)
	}
	if calls[1].Call.Name != "read_file" || calls[1].Call.ID != "call_b" {
		t.Fatalf("call 1 = %+v", calls[1].Call)
	}
	var args map[string]string
	if err := json.Unmarshal(calls[1].Call.Arguments, &args); err != nil {
		t.Fatalf("arguments not JSON: %v", err)
	}
	if args["file_path"] != "a.txt" {
		t.Fatalf("file_path=%q", args["file_path"])
	}
}

func TestFragmentAggregatorNameFixedByFirstFragment(t *testing.T) {
	agg := NewFragmentAggregator()
	agg.OnFragment(0, "first", `{"a":`)
	agg.OnFragment(0, "second", `1}`)

	calls := agg.Seal()
	if calls[0].Call.Name != "first" {
		t.Fatalf("name=%q, want first", calls[0].Call.Name)
	}
	if string(calls[0].Call.Arguments) != `{"a":1}` {
		t.Fatalf("arguments=%s", calls[0].Call.Arguments)
	}
}

func TestFragmentAggregatorDefaultIDs(t *testing.T) {
	agg := NewFragmentAggregator()
	agg.OnFragment(5, "b", "{}")
	agg.OnFragment(2, "a", "{}")

	calls := agg.Seal()
	if calls[0].Index != 2 || calls[0].Call.ID != "toolcall-1" {
		t.Fatalf("call 0 = index %d id %q", calls[0].Index, calls[0].Call.ID)
	}
	if calls[1].Index != 5 || calls[1].Call.ID != "toolcall-2" {
		t.Fatalf("call 1 = index %d id %q", calls[1].Index, calls[1].Call.ID)
	}
}

func TestFragmentAggregatorArguments(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		want    string
		wantErr bool
	}{
		{name: "empty", chunks: nil, want: "{}"},
		{name: "whitespace", chunks: []string{"  ", "\n"}, want: "{}"},
		{name: "split object", chunks: []string{`{"x"`, `: [1, 2]}`}, want: `{"x": [1, 2]}`},
		{name: "truncated", chunks: []string{`{"x": 1`}, wantErr: true},
		{name: "array", chunks: []string{`[1,2]`}, wantErr: true},
		{name: "null", chunks: []string{`null`}, wantErr: true},
		{name: "string", chunks: []string{`"text"`}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewFragmentAggregator()
			agg.OnFragment(0, "tool", "")
			for _, chunk := range tt.chunks {
				agg.OnFragment(0, "", chunk)
			}
			calls := agg.Seal()
			if len(calls) != 1 {
				t.Fatalf("got %d calls", len(calls))
			}
			call := calls[0]
			if tt.wantErr {
				var parseErr *ArgumentParseError
				if !errors.As(call.Err, &parseErr) {
					t.Fatalf("Err=%v, want *ArgumentParseError", call.Err)
				}
				if parseErr.Name != "tool" {
					t.Fatalf("parse error name=%q", parseErr.Name)
				}
				return
			}
			if call.Err != nil {
				t.Fatalf("unexpected error: %v", call.Err)
			}
			if string(call.Call.Arguments) != tt.want {
				t.Fatalf("arguments=%s, want %s", call.Call.Arguments, tt.want)
			}
		})
	}
}

func TestFragmentAggregatorSealed(t *testing.T) {
	agg := NewFragmentAggregator()
	if calls := agg.Seal(); calls != nil {
		t.Fatalf("empty seal returned %v", calls)
	}
	if err := agg.OnFragment(0, "late", "{}"); err == nil {
		t.Fatal("expected error after seal")
	}
}
