package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pandora-agent/pandora/internal/llm"
)

const editSystemPrompt = `You are a precise file editor. You receive a file and instructions.
Apply the instructions and return the complete new file content only, with no
commentary and no code fences.`

// EditFileTool implements edit_file: the file is rewritten by a model
// following natural-language instructions.
type EditFileTool struct {
	provider llm.Provider
	model    string
}

func NewEditFileTool(provider llm.Provider, model string) *EditFileTool {
	return &EditFileTool{provider: provider, model: model}
}

type EditFileArgs struct {
	FilePath         string `json:"file_path"`
	EditInstructions string `json:"edit_instructions"`
	Context          string `json:"context,omitempty"`
	Model            string `json:"model,omitempty"`
}

func (t *EditFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        EditFileToolName,
		Description: "Modify file content using natural language instructions",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path":         map[string]any{"type": "string"},
				"edit_instructions": map[string]any{"type": "string"},
				"context": map[string]any{
					"type":        "string",
					"description": "Extra context for the editor",
					"default":     "",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Model override for the edit",
				},
			},
			"required": []string{"file_path", "edit_instructions"},
		},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a EditFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.FilePath == "" || a.EditInstructions == "" {
		return "", NewToolError(ErrInvalidParams, "file_path and edit_instructions are required")
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewToolErrorf(ErrFileNotFound, "file %s does not exist", a.FilePath)
		}
		return "", NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Instructions:\n%s\n\n", a.EditInstructions)
	if a.Context != "" {
		fmt.Fprintf(&prompt, "Context:\n%s\n\n", a.Context)
	}
	fmt.Fprintf(&prompt, "File %s:\n%s", a.FilePath, data)

	content, err := llm.Complete(ctx, t.provider, llm.Request{
		Model: firstNonEmpty(a.Model, t.model),
		Messages: []llm.Message{
			llm.SystemText(editSystemPrompt),
			llm.UserText(prompt.String()),
		},
		MaxOutputTokens: 32768,
	})
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "edit request failed: %v", err)
	}
	content = stripCodeFence(content)

	if err := os.WriteFile(a.FilePath, []byte(content), 0o644); err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "write error: %v", err)
	}
	return fmt.Sprintf("File %s was edited", a.FilePath), nil
}

// stripCodeFence removes a single surrounding ``` block if the model added one.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}
	body := strings.TrimSuffix(trimmed, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		return s
	}
	return body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
