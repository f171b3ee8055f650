package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/pandora-agent/pandora/internal/llm"
)

// Print modes.
const (
	PrintModeRich = "rich"
	PrintModeJSON = "json"
)

var messageColors = map[string]lipgloss.Color{
	llm.CategoryThink:   lipgloss.Color("12"),
	llm.CategoryAsk:     lipgloss.Color("11"),
	llm.CategoryConfirm: lipgloss.Color("13"),
	llm.CategoryAnalyze: lipgloss.Color("14"),
	llm.CategoryNotify:  lipgloss.Color("10"),
	llm.CategoryUpdate:  lipgloss.Color("15"),
}

// PrintMessageTool implements print_message, the communication action.
type PrintMessageTool struct {
	mu          sync.Mutex
	out         io.Writer
	defaultMode string
}

func NewPrintMessageTool(out io.Writer, defaultMode string) *PrintMessageTool {
	return &PrintMessageTool{out: out, defaultMode: defaultMode}
}

type PrintMessageArgs struct {
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	PrintMode   string `json:"print_mode,omitempty"`
}

type printMessageResult struct {
	Message        string `json:"message"`
	MessageType    string `json:"message_type"`
	AgentLoopState string `json:"agent_loop_state"`
}

func (t *PrintMessageTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: PrintMessageToolName,
		Description: "Display a message to the user and control agent execution flow. " +
			"reply, ask and confirm hand control back to the user; think, analyze, notify and update continue autonomously.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type": "string",
				},
				"message_type": map[string]any{
					"type":    "string",
					"enum":    llm.Categories(),
					"default": llm.CategoryReply,
				},
				"print_mode": map[string]any{
					"type":    "string",
					"enum":    []string{PrintModeJSON, PrintModeRich},
					"default": t.defaultMode,
				},
			},
			"required": []string{"message", "message_type"},
		},
	}
}

func (t *PrintMessageTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a PrintMessageArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if _, err := llm.Classify(a.MessageType); err != nil {
		return "", NewToolError(ErrInvalidParams, err.Error())
	}
	mode := a.PrintMode
	if mode == "" {
		mode = t.defaultMode
	}
	if mode != PrintModeRich && mode != PrintModeJSON {
		return "", NewToolErrorf(ErrInvalidParams, "invalid print_mode %q", mode)
	}

	t.mu.Lock()
	if mode == PrintModeRich {
		fmt.Fprintln(t.out, renderPanel(a.Message, a.MessageType))
	} else {
		fmt.Fprintln(t.out, a.Message)
	}
	t.mu.Unlock()

	state, ok := llm.ModeFromContext(ctx)
	if !ok {
		state = llm.ModeInteractive
	}
	data, err := json.MarshalIndent(printMessageResult{
		Message:        a.Message,
		MessageType:    a.MessageType,
		AgentLoopState: state.String(),
	}, "", "   ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// renderPanel draws the message in a bordered box titled with its type.
func renderPanel(message, messageType string) string {
	style := lipgloss.NewStyle().Bold(true)
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2)
	if color, ok := messageColors[messageType]; ok {
		style = style.Foreground(color)
		border = border.BorderForeground(color)
	}
	title := style.Render(strings.ToUpper(messageType))
	return border.Render(title + "\n\n" + style.Render(message))
}
