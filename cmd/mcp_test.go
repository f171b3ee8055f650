package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pandora-agent/pandora/internal/mcp"
)

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{"none", nil, 0, false},
		{"blank", []string{"  "}, 0, false},
		{"object", []string{`{"path":".","depth":2}`}, 2, false},
		{"null", []string{"null"}, 0, false},
		{"array", []string{`[1,2]`}, 0, true},
		{"malformed", []string{`{"path":`}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToolArguments(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || len(got) != tt.want {
				t.Fatalf("got %v, want %d keys", got, tt.want)
			}
		})
	}
}

func TestPrintServerTools(t *testing.T) {
	states := []mcp.ServerState{
		{Name: "alpha", State: mcp.StateServing, Tools: 2},
		{Name: "beta", State: mcp.StateFailed, Error: errors.New("handshake timed out")},
	}
	descriptors := []mcp.ToolDescriptor{
		{Name: "mcp__alpha__zeta", Tool: "zeta", Server: "alpha"},
		{Name: "mcp__alpha__ping", Tool: "ping", Server: "alpha", Description: "Reply with pong.\nMore detail."},
	}

	var buf bytes.Buffer
	printServerTools(&buf, states, descriptors)
	out := buf.String()

	if !strings.Contains(out, "MCP servers (2)") {
		t.Errorf("missing header: %q", out)
	}
	ping := strings.Index(out, "mcp__alpha__ping")
	zeta := strings.Index(out, "mcp__alpha__zeta")
	if ping < 0 || zeta < 0 || ping > zeta {
		t.Errorf("tools missing or unsorted: %q", out)
	}
	if !strings.Contains(out, "Reply with pong.") || strings.Contains(out, "More detail.") {
		t.Errorf("description should show its first line only: %q", out)
	}
	if !strings.Contains(out, "beta [failed]: handshake timed out") {
		t.Errorf("missing failed server: %q", out)
	}
}
