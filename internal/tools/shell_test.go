package tools

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"testing"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func runShell(t *testing.T, args string) ShellResult {
	t.Helper()
	out, err := NewExecuteBashTool().Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var result ShellResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	return result
}

func TestExecuteBashTool_Spec(t *testing.T) {
	spec := NewExecuteBashTool().Spec()
	if spec.Name != ExecuteBashToolName {
		t.Errorf("expected name %q, got %q", ExecuteBashToolName, spec.Name)
	}
	props, ok := spec.Schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema should have properties")
	}
	for _, p := range []string{"command", "timeout"} {
		if _, ok := props[p]; !ok {
			t.Errorf("schema should have %s property", p)
		}
	}
}

func TestExecuteBashTool_Output(t *testing.T) {
	requireBash(t)

	result := runShell(t, `{"command":"echo out; echo err >&2; exit 3"}`)
	if result.Stdout != "out\n" {
		t.Errorf("stdout=%q", result.Stdout)
	}
	if result.Stderr != "err\n" {
		t.Errorf("stderr=%q", result.Stderr)
	}
	if result.ReturnCode != 3 {
		t.Errorf("returncode=%d, want 3", result.ReturnCode)
	}
	if result.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestExecuteBashTool_Timeout(t *testing.T) {
	requireBash(t)

	result := runShell(t, `{"command":"sleep 5","timeout":1}`)
	if !result.TimedOut {
		t.Fatalf("expected timeout, got %+v", result)
	}
	if result.ReturnCode != -1 {
		t.Errorf("returncode=%d, want -1", result.ReturnCode)
	}
}

func TestExecuteBashTool_InvalidArgs(t *testing.T) {
	tool := NewExecuteBashTool()
	for _, args := range []string{`{}`, `{"command":""}`, `{"command":5}`} {
		_, err := tool.Execute(context.Background(), json.RawMessage(args))
		if err == nil || !strings.Contains(err.Error(), string(ErrInvalidParams)) {
			t.Errorf("args %s: err=%v", args, err)
		}
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", maxShellOutputBytes+10)
	out, truncated := truncateOutput(long)
	if !truncated || len(out) != maxShellOutputBytes {
		t.Fatalf("truncated=%v len=%d", truncated, len(out))
	}
	if _, truncated := truncateOutput("short"); truncated {
		t.Fatal("short output truncated")
	}
}
