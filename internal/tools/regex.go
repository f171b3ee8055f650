package tools

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/pandora-agent/pandora/internal/llm"
)

// ApplyRegexTool implements apply_regex.
type ApplyRegexTool struct{}

func NewApplyRegexTool() *ApplyRegexTool {
	return &ApplyRegexTool{}
}

type ApplyRegexArgs struct {
	FilePath    string   `json:"file_path"`
	Pattern     string   `json:"pattern"`
	Replacement string   `json:"replacement"`
	Flags       []string `json:"flags,omitempty"`
	Count       int      `json:"count,omitempty"`
}

type applyRegexResult struct {
	FilePath       string `json:"file_path"`
	Pattern        string `json:"pattern"`
	Replacement    string `json:"replacement"`
	Substitutions  int    `json:"substitutions"`
	ContentChanged bool   `json:"content_changed"`
	OriginalLength int    `json:"original_length"`
	NewLength      int    `json:"new_length"`
}

var regexFlagPrefixes = map[string]string{
	"IGNORECASE": "i",
	"MULTILINE":  "m",
	"DOTALL":     "s",
}

func (t *ApplyRegexTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ApplyRegexToolName,
		Description: "Apply a regular expression substitution to a file. Replacement may reference groups as ${1} or ${name}.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path":   map[string]any{"type": "string"},
				"pattern":     map[string]any{"type": "string"},
				"replacement": map[string]any{"type": "string"},
				"flags": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "string",
						"enum": []string{"IGNORECASE", "MULTILINE", "DOTALL"},
					},
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Maximum substitutions; 0 replaces all",
					"default":     0,
				},
			},
			"required": []string{"file_path", "pattern", "replacement"},
		},
	}
}

func (t *ApplyRegexTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ApplyRegexArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.FilePath == "" || a.Pattern == "" {
		return "", NewToolError(ErrInvalidParams, "file_path and pattern are required")
	}
	if a.Count < 0 {
		return "", NewToolError(ErrInvalidParams, "count must not be negative")
	}

	re, err := compileWithFlags(a.Pattern, a.Flags)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewToolErrorf(ErrFileNotFound, "file %s does not exist", a.FilePath)
		}
		return "", NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}
	original := string(data)

	updated, n := replaceN(re, original, a.Replacement, a.Count)
	if updated != original {
		if err := os.WriteFile(a.FilePath, []byte(updated), 0o644); err != nil {
			return "", NewToolErrorf(ErrExecutionFailed, "write error: %v", err)
		}
	}

	out, err := json.MarshalIndent(applyRegexResult{
		FilePath:       a.FilePath,
		Pattern:        a.Pattern,
		Replacement:    a.Replacement,
		Substitutions:  n,
		ContentChanged: updated != original,
		OriginalLength: len(original),
		NewLength:      len(updated),
	}, "", "   ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// compileWithFlags maps flag names onto RE2 inline flags.
func compileWithFlags(pattern string, flags []string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, flag := range flags {
		prefix, ok := regexFlagPrefixes[strings.ToUpper(flag)]
		if !ok {
			return nil, NewToolErrorf(ErrUnsupportedFormat, "unsupported regex flag: %s", flag)
		}
		if !strings.Contains(inline.String(), prefix) {
			inline.WriteString(prefix)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewToolErrorf(ErrInvalidParams, "invalid pattern: %v", err)
	}
	return re, nil
}

// replaceN replaces up to count matches (all when count is 0) and returns
// the result and the number of substitutions made.
func replaceN(re *regexp.Regexp, src, repl string, count int) (string, int) {
	limit := -1
	if count > 0 {
		limit = count
	}
	matches := re.FindAllStringSubmatchIndex(src, limit)
	if len(matches) == 0 {
		return src, 0
	}
	var out []byte
	last := 0
	for _, m := range matches {
		out = append(out, src[last:m[0]]...)
		out = re.ExpandString(out, repl, src, m)
		last = m[1]
	}
	out = append(out, src[last:]...)
	return string(out), len(matches)
}
