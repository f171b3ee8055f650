package tools

import (
	"context"
	"encoding/json"

	"github.com/pandora-agent/pandora/internal/llm"
)

const (
	defaultSearchModel     = "gpt-4o-mini-search-preview"
	defaultSearchMaxTokens = 1024
)

// WebSearchTool implements search_through_web using a search-capable model.
type WebSearchTool struct {
	provider llm.Provider
}

func NewWebSearchTool(provider llm.Provider) *WebSearchTool {
	return &WebSearchTool{provider: provider}
}

type WebSearchArgs struct {
	Query             string `json:"query"`
	Model             string `json:"model,omitempty"`
	SearchContextSize string `json:"search_context_size,omitempty"`
	MaxTokens         int    `json:"max_tokens,omitempty"`
}

func (t *WebSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WebSearchToolName,
		Description: "Perform a web search and return summarized results",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"model": map[string]any{
					"type":    "string",
					"enum":    []string{"gpt-4o-mini-search-preview", "gpt-4o-search-preview"},
					"default": defaultSearchModel,
				},
				"search_context_size": map[string]any{
					"type":    "string",
					"enum":    []string{"low", "medium", "high"},
					"default": "medium",
				},
				"max_tokens": map[string]any{
					"type":    "integer",
					"default": defaultSearchMaxTokens,
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a WebSearchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Query == "" {
		return "", NewToolError(ErrInvalidParams, "query is required")
	}
	switch a.SearchContextSize {
	case "":
		a.SearchContextSize = "medium"
	case "low", "medium", "high":
	default:
		return "", NewToolErrorf(ErrInvalidParams, "invalid search_context_size %q", a.SearchContextSize)
	}
	if a.MaxTokens <= 0 {
		a.MaxTokens = defaultSearchMaxTokens
	}

	text, err := llm.Complete(ctx, t.provider, llm.Request{
		Model:             firstNonEmpty(a.Model, defaultSearchModel),
		Messages:          []llm.Message{llm.UserText(a.Query)},
		MaxOutputTokens:   a.MaxTokens,
		SearchContextSize: a.SearchContextSize,
	})
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "search failed: %v", err)
	}
	return text, nil
}
