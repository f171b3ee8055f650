package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxAutonomousTurns = 20
	defaultRetryBackoff       = time.Second
	defaultMaxTurnRetries     = 3
)

// EngineConfig configures a dispatch engine. Zero values select defaults.
type EngineConfig struct {
	Model             string
	SystemPrompt      string
	ToolChoice        ToolChoice // defaults to required
	ParallelToolCalls bool
	MaxOutputTokens   int
	// MaxParallelTools caps concurrent tool executions; 0 means unlimited.
	MaxParallelTools int
	// MaxAutonomousTurns returns control to the user after this many turns
	// without input. Negative disables the limit.
	MaxAutonomousTurns int
	RetryBackoff       time.Duration
	MaxTurnRetries     int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.ToolChoice.Mode == "" {
		c.ToolChoice = ToolChoice{Mode: ToolChoiceRequired}
	}
	if c.MaxAutonomousTurns == 0 {
		c.MaxAutonomousTurns = defaultMaxAutonomousTurns
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.MaxTurnRetries <= 0 {
		c.MaxTurnRetries = defaultMaxTurnRetries
	}
	return c
}

// TurnResult describes one completed turn.
type TurnResult struct {
	StopReason StopReason
	Text       string
	Calls      []ToolCall
	Results    []Message
	// Communicated is true when the turn contained a communication action.
	Communicated bool
	Usage        *Usage
}

// InputSource supplies user input for interactive turns. It returns io.EOF
// when no more input is available.
type InputSource interface {
	ReadInput(ctx context.Context) (string, error)
}

// Engine runs the conversation: it streams model turns, reassembles tool
// calls, dispatches them concurrently and tracks the execution mode.
type Engine struct {
	provider Provider
	tools    *ToolRegistry
	remote   RemoteTools
	cfg      EngineConfig
	mode     *ModeMachine
	out      io.Writer

	mu      sync.Mutex
	history []Message

	// allowedTools filters which tools can be offered and executed.
	// If nil, all tools are allowed.
	allowedTools []glob.Glob
	allowedMu    sync.RWMutex
}

// NewEngine creates an engine. remote may be nil when no external servers
// are configured.
func NewEngine(provider Provider, tools *ToolRegistry, remote RemoteTools, cfg EngineConfig) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{
		provider: provider,
		tools:    tools,
		remote:   remote,
		cfg:      cfg.withDefaults(),
		mode:     NewModeMachine(),
		out:      io.Discard,
	}
}

// SetOutput sets where streamed model text is echoed.
func (e *Engine) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	e.out = w
}

// SetAllowedTools restricts tools to those matching the glob patterns.
// An empty list allows everything. The communication action is always allowed.
func (e *Engine) SetAllowedTools(patterns []string) error {
	var globs []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid allowed-tools pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	e.allowedMu.Lock()
	e.allowedTools = globs
	e.allowedMu.Unlock()
	return nil
}

// IsToolAllowed checks if a tool can be executed under current restrictions.
func (e *Engine) IsToolAllowed(name string) bool {
	if name == MessageToolName {
		return true
	}
	e.allowedMu.RLock()
	defer e.allowedMu.RUnlock()
	if len(e.allowedTools) == 0 {
		return true
	}
	for _, g := range e.allowedTools {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Mode returns the current execution mode.
func (e *Engine) Mode() ExecutionMode {
	return e.mode.Mode()
}

// History returns a copy of the conversation so far.
func (e *Engine) History() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.history...)
}

// AddUserMessage appends user input to the conversation.
func (e *Engine) AddUserMessage(text string) {
	e.appendHistory(UserText(text))
}

func (e *Engine) appendHistory(msgs ...Message) {
	e.mu.Lock()
	e.history = append(e.history, msgs...)
	e.mu.Unlock()
}

// ToolSpecs returns local and remote tools offered to the model.
func (e *Engine) ToolSpecs() []ToolSpec {
	specs := e.tools.AllSpecs()
	if e.remote != nil {
		specs = append(specs, e.remote.Specs()...)
	}
	out := make([]ToolSpec, 0, len(specs))
	for _, spec := range specs {
		if e.IsToolAllowed(spec.Name) {
			out = append(out, spec)
		}
	}
	return out
}

func (e *Engine) buildRequest() Request {
	e.mu.Lock()
	messages := make([]Message, 0, len(e.history)+1)
	if e.cfg.SystemPrompt != "" {
		messages = append(messages, SystemText(e.cfg.SystemPrompt))
	}
	messages = append(messages, e.history...)
	e.mu.Unlock()

	req := Request{
		Model:             e.cfg.Model,
		Messages:          messages,
		Tools:             e.ToolSpecs(),
		ToolChoice:        e.cfg.ToolChoice,
		ParallelToolCalls: e.cfg.ParallelToolCalls,
		MaxOutputTokens:   e.cfg.MaxOutputTokens,
	}
	if len(req.Tools) == 0 {
		req.ToolChoice = ToolChoice{Mode: ToolChoiceAuto}
	}
	return req
}

// RunTurn streams one model turn and, if the model asked for tools,
// executes them. On error the history is left unchanged.
func (e *Engine) RunTurn(ctx context.Context) (*TurnResult, error) {
	stream, err := e.provider.Stream(ctx, e.buildRequest())
	if err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	defer stream.Close()

	aggregator := NewFragmentAggregator()
	var text strings.Builder
	result := &TurnResult{}

	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream: %w", err)
		}
		switch event.Type {
		case EventTextDelta:
			text.WriteString(event.Text)
			fmt.Fprint(e.out, event.Text)
		case EventToolCallDelta:
			if event.Fragment != nil {
				if err := aggregator.Add(*event.Fragment); err != nil {
					return nil, err
				}
			}
		case EventUsage:
			result.Usage = event.Use
			if event.Use != nil {
				slog.Debug("model usage", "input_tokens", event.Use.InputTokens, "output_tokens", event.Use.OutputTokens)
			}
		case EventRetry:
			slog.Warn("retrying model request", "attempt", event.RetryAttempt, "max_attempts", event.RetryMaxAttempts, "wait_secs", event.RetryWaitSecs)
		case EventDone:
			result.StopReason = event.StopReason
		case EventError:
			if event.Err != nil {
				return nil, event.Err
			}
		}
	}

	result.Text = text.String()
	if result.Text != "" && !strings.HasSuffix(result.Text, "\n") {
		fmt.Fprintln(e.out)
	}

	if result.StopReason == "" {
		if aggregator.Len() > 0 {
			result.StopReason = StopToolCalls
		} else {
			result.StopReason = StopEndTurn
		}
	}

	switch result.StopReason {
	case StopToolCalls:
		if aggregator.Len() == 0 {
			return nil, errors.New("model requested tool calls but sent none")
		}
		return e.dispatch(ctx, result, aggregator.Seal())
	case StopEndTurn:
	default:
		slog.Warn("model stopped before finishing", "reason", result.StopReason, "discarded_tool_calls", aggregator.Len())
	}

	if result.Text != "" {
		e.appendHistory(AssistantText(result.Text))
	}
	return result, nil
}

// dispatch validates communication actions, applies mode transitions and
// executes every call concurrently.
func (e *Engine) dispatch(ctx context.Context, result *TurnResult, calls []AssembledCall) (*TurnResult, error) {
	// Reject the whole turn before anything runs if a category is invalid.
	var categories []string
	for _, call := range calls {
		if call.Call.Name != MessageToolName || call.Err != nil {
			continue
		}
		category := messageCategory(call.Call.Arguments)
		if _, err := Classify(category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	for _, category := range categories {
		if _, err := e.mode.Transition(category); err != nil {
			return nil, err
		}
	}
	result.Communicated = len(categories) > 0

	result.Calls = make([]ToolCall, len(calls))
	for i, call := range calls {
		result.Calls[i] = call.Call
	}
	result.Results = e.executeToolCalls(ctx, calls)

	e.appendHistory(buildAssistantMessage(result.Text, result.Calls))
	e.appendHistory(result.Results...)
	return result, nil
}

// messageCategory extracts message_type from communication action arguments.
func messageCategory(args json.RawMessage) string {
	var parsed struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return ""
	}
	return parsed.MessageType
}

// executeToolCalls runs all calls concurrently and returns one result
// message per call, in call order. A failing call never cancels others.
func (e *Engine) executeToolCalls(ctx context.Context, calls []AssembledCall) []Message {
	results := make([]Message, len(calls))
	mode := e.mode.Mode()

	var g errgroup.Group
	if e.cfg.MaxParallelTools > 0 {
		g.SetLimit(e.cfg.MaxParallelTools)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.executeSingleToolCall(ctx, call, mode)
			return nil
		})
	}
	g.Wait()
	return results
}

// executeSingleToolCall executes one call. Every failure, including a
// panic, becomes an error result for the model.
func (e *Engine) executeSingleToolCall(ctx context.Context, assembled AssembledCall, mode ExecutionMode) (msg Message) {
	call := assembled.Call
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", call.Name, "call_id", call.ID, "panic", r)
			msg = ToolErrorMessage(call.ID, call.Name, fmt.Sprintf("Error: tool panicked: %v", r))
		}
	}()

	if assembled.Err != nil {
		return ToolErrorMessage(call.ID, call.Name, fmt.Sprintf("Error: %v", assembled.Err))
	}
	if !e.IsToolAllowed(call.Name) {
		return ToolErrorMessage(call.ID, call.Name, fmt.Sprintf("Error: tool '%s' is not in the allowed-tools list", call.Name))
	}

	toolCtx := ContextWithMode(ContextWithCallID(ctx, call.ID), mode)
	start := time.Now()

	var output string
	var err error
	if e.remote != nil && e.remote.Owns(call.Name) {
		output, err = e.remote.Call(toolCtx, call.Name, call.Arguments)
	} else if tool, ok := e.tools.Get(call.Name); ok {
		output, err = tool.Execute(toolCtx, call.Arguments)
	} else {
		err = fmt.Errorf("tool not found: %s", call.Name)
	}

	if err != nil {
		slog.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return ToolErrorMessage(call.ID, call.Name, fmt.Sprintf("Error: %v", err))
	}
	slog.Debug("tool call finished", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	return ToolResultMessage(call.ID, call.Name, output)
}

// IsExitCommand reports whether input asks to leave the loop.
func IsExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

// needsInput decides whether the next turn waits for the user.
func (e *Engine) needsInput(result *TurnResult) bool {
	if result.StopReason == StopToolCalls && !result.Communicated {
		return false
	}
	return e.mode.Mode() == ModeInteractive
}

// Run drives the conversation until input is exhausted, an exit command is
// entered or ctx is cancelled. Failed turns are retried after a backoff.
func (e *Engine) Run(ctx context.Context, input InputSource) error {
	needInput := true
	autonomousTurns := 0
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		if needInput {
			text, err := input.ReadInput(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read input: %w", err)
			}
			text = strings.TrimSpace(text)
			if IsExitCommand(text) {
				return nil
			}
			if text == "" {
				continue
			}
			e.AddUserMessage(text)
		}

		result, err := e.RunTurn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			slog.Error("turn failed", "error", err, "attempt", failures)
			if failures >= e.cfg.MaxTurnRetries {
				slog.Warn("giving up on turn", "attempts", failures)
				failures = 0
				needInput = true
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(e.cfg.RetryBackoff):
			}
			needInput = false
			continue
		}
		failures = 0

		needInput = e.needsInput(result)
		if needInput {
			autonomousTurns = 0
			continue
		}
		autonomousTurns++
		if e.cfg.MaxAutonomousTurns > 0 && autonomousTurns >= e.cfg.MaxAutonomousTurns {
			slog.Warn("autonomous turn limit reached, returning control to the user", "turns", autonomousTurns)
			e.mode.Reset()
			autonomousTurns = 0
			needInput = true
		}
	}
}
