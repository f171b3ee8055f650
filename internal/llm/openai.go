package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider streams chat completions from the OpenAI API or a
// compatible endpoint.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(chooseModel(req.Model, p.model)),
			Messages: buildOpenAIMessages(req.Messages),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}
		if req.ReasoningEffort != "" {
			params.ReasoningEffort = shared.ReasoningEffort(req.ReasoningEffort)
		}
		if len(req.Tools) > 0 {
			params.Tools = buildOpenAITools(req.Tools)
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(string(cmp.Or(req.ToolChoice.Mode, ToolChoiceAuto))),
			}
			params.ParallelToolCalls = openai.Bool(req.ParallelToolCalls)
		}

		var opts []option.RequestOption
		if req.SearchContextSize != "" {
			opts = append(opts, option.WithJSONSet("web_search_options", map[string]any{
				"search_context_size": req.SearchContextSize,
			}))
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params, opts...)
		defer stream.Close()

		stop := StopReason("")
		for stream.Next() {
			chunk := stream.Current()
			for _, event := range translateOpenAIChunk(chunk) {
				if event.Type == EventDone {
					stop = event.StopReason
					continue
				}
				events <- event
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai streaming error: %w", err)
		}
		events <- Event{Type: EventDone, StopReason: stop}
		return nil
	}), nil
}

// translateOpenAIChunk converts one streamed chunk into engine events.
// A finish reason is reported as an EventDone.
func translateOpenAIChunk(chunk openai.ChatCompletionChunk) []Event {
	var events []Event
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			events = append(events, Event{Type: EventTextDelta, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			events = append(events, Event{
				Type: EventToolCallDelta,
				Fragment: &ToolCallFragment{
					Index:     int(tc.Index),
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		if choice.FinishReason != "" {
			events = append(events, Event{Type: EventDone, StopReason: mapOpenAIFinishReason(choice.FinishReason)})
		}
	}
	if chunk.Usage.TotalTokens > 0 {
		events = append(events, Event{Type: EventUsage, Use: &Usage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
		}})
	}
	return events
}

func mapOpenAIFinishReason(reason string) StopReason {
	switch reason {
	case "stop":
		return StopEndTurn
	case "tool_calls", "function_call":
		return StopToolCalls
	case "length":
		return StopMaxTokens
	default:
		return StopOther
	}
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(collectTextParts(msg.Parts)))
		case RoleUser:
			out = append(out, openai.UserMessage(collectTextParts(msg.Parts)))
		case RoleAssistant:
			text, calls := splitParts(msg.Parts)
			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(text))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			for _, part := range msg.Parts {
				if part.ToolResult != nil {
					out = append(out, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ID))
				}
			}
		}
	}
	return out
}

// splitParts separates assistant text from tool calls. Arguments that are
// not valid JSON are replaced so the request stays well formed.
func splitParts(parts []Part) (string, []openai.ChatCompletionMessageToolCallParam) {
	var text strings.Builder
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, part := range parts {
		switch part.Type {
		case PartText:
			text.WriteString(part.Text)
		case PartToolCall:
			if part.ToolCall == nil {
				continue
			}
			args := string(part.ToolCall.Arguments)
			if !json.Valid(part.ToolCall.Arguments) {
				args = "{}"
			}
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID: part.ToolCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.ToolCall.Name,
					Arguments: args,
				},
			})
		}
	}
	return text.String(), calls
}

func buildOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
		}
		if spec.Schema != nil {
			fn.Parameters = shared.FunctionParameters(spec.Schema)
		}
		tools = append(tools, openai.ChatCompletionToolParam{Function: fn})
	}
	return tools
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
