package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pandora-agent/pandora/internal/mcp"
	"github.com/pandora-agent/pandora/internal/signal"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect and call MCP (Model Context Protocol) servers",
	Long: `Inspect the configured MCP servers and call their tools directly.

Examples:
  pandora mcp list                       # start servers and list their tools
  pandora mcp call mcp__fs__read '{"path":"go.mod"}'
  pandora mcp path                       # print the default config location`,
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "Start the configured servers and list their tools",
	RunE:  mcpList,
}

var mcpCallCmd = &cobra.Command{
	Use:   "call <tool> [json-arguments]",
	Short: "Call a tool by its qualified name",
	Long: `Call a tool by its qualified name (mcp__<server>__<tool>).
Arguments are a JSON object; they default to {}.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: mcpCall,
}

var mcpPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print MCP configuration file path",
	RunE:  mcpPath,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.AddCommand(mcpListCmd)
	mcpCmd.AddCommand(mcpCallCmd)
	mcpCmd.AddCommand(mcpPathCmd)
}

func mcpList(cmd *cobra.Command, args []string) error {
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
	out := cmd.OutOrStdout()
	if len(servers.Servers) == 0 {
		fmt.Fprintln(out, "No MCP servers configured.")
		return nil
	}

	orchestrator := newOrchestrator(cfg, servers)
	defer orchestrator.Shutdown()
	if err := orchestrator.Launch(ctx); err != nil {
		return err
	}

	printServerTools(out, orchestrator.States(), orchestrator.ListTools())
	return nil
}

// printServerTools writes each server's state followed by its tools.
func printServerTools(w io.Writer, states []mcp.ServerState, descriptors []mcp.ToolDescriptor) {
	byServer := make(map[string][]mcp.ToolDescriptor)
	for _, d := range descriptors {
		byServer[d.Server] = append(byServer[d.Server], d)
	}

	fmt.Fprintf(w, "MCP servers (%d):\n\n", len(states))
	for _, state := range states {
		if state.Error != nil {
			fmt.Fprintf(w, "  %s [%s]: %v\n", state.Name, state.State, state.Error)
			continue
		}
		fmt.Fprintf(w, "  %s [%s]\n", state.Name, state.State)
		tools := byServer[state.Name]
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		for _, tool := range tools {
			fmt.Fprintf(w, "    - %s\n", tool.Name)
			if desc := firstLine(tool.Description); desc != "" {
				if len(desc) > 60 {
					desc = desc[:57] + "..."
				}
				fmt.Fprintf(w, "      %s\n", desc)
			}
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func mcpCall(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	arguments, err := parseToolArguments(args[1:])
	if err != nil {
		return err
	}

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
	orchestrator := newOrchestrator(cfg, servers)
	defer orchestrator.Shutdown()
	if err := orchestrator.Launch(ctx); err != nil {
		return err
	}

	resp := orchestrator.CallTool(ctx, args[0], arguments)
	if !resp.OK() {
		if resp.Err != nil {
			return resp.Err
		}
		return fmt.Errorf("%s", resp.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
	return nil
}

// parseToolArguments decodes the optional JSON object argument.
func parseToolArguments(args []string) (map[string]any, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return map[string]any{}, nil
	}
	var arguments map[string]any
	if err := json.Unmarshal([]byte(args[0]), &arguments); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	return arguments, nil
}

func mcpPath(cmd *cobra.Command, args []string) error {
	path := mcpConfigFlag
	if path == "" {
		var err error
		path, err = mcp.DefaultConfigPath()
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
