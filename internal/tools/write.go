package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pandora-agent/pandora/internal/llm"
)

// CreateFileTool implements the create_file tool.
type CreateFileTool struct{}

func NewCreateFileTool() *CreateFileTool {
	return &CreateFileTool{}
}

// CreateFileArgs are the arguments for create_file.
type CreateFileArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (t *CreateFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        CreateFileToolName,
		Description: "Create or overwrite a file with the given content. Parent directories are created as needed.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full file content",
				},
			},
			"required": []string{"file_path", "content"},
		},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a CreateFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.FilePath == "" {
		return "", NewToolError(ErrInvalidParams, "file_path is required")
	}

	if dir := filepath.Dir(a.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", NewToolErrorf(ErrExecutionFailed, "create directory: %v", err)
		}
	}
	if err := os.WriteFile(a.FilePath, []byte(a.Content), 0o644); err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "write error: %v", err)
	}
	return WarnUnknownParams(args, schemaKeys(t.Spec().Schema)) + fmt.Sprintf("File %s was created", a.FilePath), nil
}
