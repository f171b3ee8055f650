package tools

import (
	"context"
	"encoding/json"

	"github.com/pandora-agent/pandora/internal/llm"
)

const planSystemPrompt = "You are an expert task planner. Create comprehensive, actionable execution plans."

// GeneratePlanTool implements generate_plan.
type GeneratePlanTool struct {
	provider llm.Provider
	model    string
}

func NewGeneratePlanTool(provider llm.Provider, model string) *GeneratePlanTool {
	return &GeneratePlanTool{provider: provider, model: model}
}

type GeneratePlanArgs struct {
	Task            string `json:"task"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Model           string `json:"model,omitempty"`
}

func (t *GeneratePlanTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GeneratePlanToolName,
		Description: "Create a detailed execution plan for a complex task",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{"type": "string"},
				"reasoning_effort": map[string]any{
					"type":    "string",
					"enum":    []string{"low", "medium", "high"},
					"default": "medium",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Reasoning model override, e.g. o3 or o4-mini",
				},
			},
			"required": []string{"task"},
		},
	}
}

func (t *GeneratePlanTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a GeneratePlanArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if a.Task == "" {
		return "", NewToolError(ErrInvalidParams, "task is required")
	}
	switch a.ReasoningEffort {
	case "", "low", "medium", "high":
	default:
		return "", NewToolErrorf(ErrInvalidParams, "invalid reasoning_effort %q", a.ReasoningEffort)
	}

	req := llm.Request{
		Model: firstNonEmpty(a.Model, t.model),
		Messages: []llm.Message{
			llm.SystemText(planSystemPrompt),
			llm.UserText("Task: " + a.Task),
		},
	}
	// Reasoning effort only applies to reasoning models chosen explicitly.
	if a.Model != "" {
		req.ReasoningEffort = firstNonEmpty(a.ReasoningEffort, "medium")
	}

	plan, err := llm.Complete(ctx, t.provider, req)
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "plan request failed: %v", err)
	}
	return plan, nil
}
