package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"time"

	"github.com/pandora-agent/pandora/internal/llm"
)

const (
	defaultShellTimeout = 30
	maxShellTimeout     = 300
	maxShellOutputBytes = 64 * 1024
)

// ExecuteBashTool implements execute_bash.
type ExecuteBashTool struct {
	shell string
}

func NewExecuteBashTool() *ExecuteBashTool {
	return &ExecuteBashTool{shell: "bash"}
}

// ShellArgs are the arguments for execute_bash.
type ShellArgs struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// ShellResult contains the result of a shell command.
type ShellResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

func (t *ExecuteBashTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ExecuteBashToolName,
		Description: "Execute a bash command and return stdout, stderr and the return code.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Command passed to bash -c",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Timeout in seconds (default: 30, max: 300)",
					"default":     defaultShellTimeout,
				},
			},
			"required": []string{"command"},
		},
	}
}

func (t *ExecuteBashTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ShellArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Command == "" {
		return "", NewToolError(ErrInvalidParams, "command is required")
	}

	timeout := defaultShellTimeout
	if a.Timeout > 0 {
		timeout = min(a.Timeout, maxShellTimeout)
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, t.shell, "-c", a.Command)
	// Background children can hold the pipes open after a kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ShellResult{}
	result.Stdout, result.Truncated = truncateOutput(stdout.String())
	var stderrTruncated bool
	result.Stderr, stderrTruncated = truncateOutput(stderr.String())
	result.Truncated = result.Truncated || stderrTruncated

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ReturnCode = -1
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", NewToolErrorf(ErrExecutionFailed, "command error: %v", err)
		}
		result.ReturnCode = exitErr.ExitCode()
	}

	out, err := json.MarshalIndent(result, "", "   ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func truncateOutput(s string) (string, bool) {
	if len(s) <= maxShellOutputBytes {
		return s, false
	}
	return s[:maxShellOutputBytes], true
}
