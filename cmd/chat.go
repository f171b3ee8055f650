package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/pandora-agent/pandora/internal/config"
	"github.com/pandora-agent/pandora/internal/llm"
	"github.com/pandora-agent/pandora/internal/mcp"
	"github.com/pandora-agent/pandora/internal/prompt"
	"github.com/pandora-agent/pandora/internal/signal"
	"github.com/pandora-agent/pandora/internal/tools"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive agent session (default)",
	Long: `Start an interactive agent session.

MCP servers from the configuration are started first; a server that fails or
does not answer within the startup timeout is skipped. Type a query at the
prompt. The agent keeps working on its own until it replies, asks or asks for
confirmation. Type exit, quit or q (or press Ctrl-D) to leave.

Examples:
  pandora chat
  pandora chat --print-mode json
  pandora chat --provider anthropic -m claude-sonnet-4-5`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logCloser, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	servers, err := loadMCPConfig(cfg)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return err
	}

	orchestrator := newOrchestrator(cfg, servers)
	defer orchestrator.Shutdown()
	if err := launchServers(ctx, orchestrator, cmd.ErrOrStderr()); err != nil {
		return err
	}

	engine, err := newAgentEngine(cfg, provider, orchestrator, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	input, err := newLineInput(os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("init input: %w", err)
	}
	defer input.Close()

	slog.Debug("agent ready", "provider", provider.Name(), "tools", len(engine.ToolSpecs()))
	return engine.Run(ctx, input)
}

// newAgentEngine wires the local tools and the orchestrator's tools into a
// dispatch engine.
func newAgentEngine(cfg *config.Config, provider llm.Provider, orchestrator *mcp.Orchestrator, out io.Writer) (*llm.Engine, error) {
	local, err := tools.NewLocalToolRegistry(cfg.Agent.Tools, tools.Deps{
		Provider:  provider,
		Model:     cfg.ActiveModel(),
		Out:       out,
		PrintMode: cfg.Agent.PrintMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tools: %w", err)
	}
	registry := llm.NewToolRegistry()
	local.RegisterWith(registry)

	var serverNames []string
	for _, state := range orchestrator.States() {
		if state.State == mcp.StateReady || state.State == mcp.StateServing {
			serverNames = append(serverNames, state.Name)
		}
	}

	engine := llm.NewEngine(provider, registry, mcp.NewEngineTools(orchestrator), llm.EngineConfig{
		Model: cfg.ActiveModel(),
		SystemPrompt: prompt.System(prompt.SystemOptions{
			Instructions: cfg.Agent.SystemPrompt,
			Servers:      serverNames,
		}),
		ParallelToolCalls:  cfg.Agent.ParallelToolCalls,
		MaxOutputTokens:    cfg.Agent.MaxOutputTokens,
		MaxParallelTools:   cfg.Agent.MaxParallelTools,
		MaxAutonomousTurns: cfg.Agent.MaxAutonomousTurns,
		RetryBackoff:       cfg.Agent.RetryBackoff,
		MaxTurnRetries:     cfg.Agent.MaxTurnRetries,
	})
	if err := engine.SetAllowedTools(cfg.Agent.AllowedTools); err != nil {
		return nil, err
	}
	if cfg.Log.Level == "debug" {
		engine.SetOutput(os.Stderr)
	}
	return engine, nil
}

var (
	readyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// launchServers starts the MCP servers and reports each outcome on w.
func launchServers(ctx context.Context, orchestrator *mcp.Orchestrator, w io.Writer) error {
	updates := make(chan mcp.StatusUpdate, 16)
	orchestrator.SetStatusChannel(updates)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			switch update.State {
			case mcp.StateReady:
				fmt.Fprintln(w, readyStyle.Render("✓ "+update.Name))
			case mcp.StateFailed:
				fmt.Fprintln(w, failedStyle.Render(fmt.Sprintf("✗ %s: %v", update.Name, update.Error)))
			}
		}
	}()

	err := orchestrator.Launch(ctx)
	orchestrator.SetStatusChannel(nil)
	close(updates)
	<-done
	return err
}
