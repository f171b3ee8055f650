package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/pandora-agent/pandora/internal/llm"
)

// maxReadBytes caps read_file output.
const maxReadBytes = 1 << 20

// ReadFileTool implements the read_file tool.
type ReadFileTool struct{}

func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

// ReadFileArgs are the arguments for read_file.
type ReadFileArgs struct {
	FilePath string `json:"file_path"`
}

func (t *ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ReadFileToolName,
		Description: "Read and return the complete content of a text file",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Absolute or relative path to the file to read",
				},
			},
			"required": []string{"file_path"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ReadFileArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.FilePath == "" {
		return "", NewToolError(ErrInvalidParams, "file_path is required")
	}

	info, err := os.Stat(a.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewToolErrorf(ErrFileNotFound, "file %s does not exist", a.FilePath)
		}
		return "", NewToolErrorf(ErrExecutionFailed, "stat error: %v", err)
	}
	if info.IsDir() {
		return "", NewToolErrorf(ErrInvalidParams, "%s is a directory", a.FilePath)
	}
	if info.Size() > maxReadBytes {
		return "", NewToolErrorf(ErrFileTooLarge, "%s is %d bytes (limit %d)", a.FilePath, info.Size(), maxReadBytes)
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}
	if isBinaryContent(data) {
		return "", NewToolErrorf(ErrBinaryFile, "%s appears to be a binary file", a.FilePath)
	}
	return WarnUnknownParams(args, schemaKeys(t.Spec().Schema)) + string(data), nil
}

// isBinaryContent detects if content is binary using http.DetectContentType.
func isBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}

	contentType := http.DetectContentType(sample)
	if strings.HasPrefix(contentType, "text/") {
		return false
	}
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "xml") {
		return false
	}
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}
