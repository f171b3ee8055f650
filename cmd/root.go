package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pandora-agent/pandora/internal/config"
	"github.com/pandora-agent/pandora/internal/mcp"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pandora",
	Short: "Terminal agent that drives local and MCP tools",
	Long: `pandora runs a model-driven agent loop in your terminal. The model acts
through tools: local file, shell, search and planning tools plus every tool
offered by the configured MCP servers.

Examples:
  pandora                               # start an interactive session
  pandora -m gpt-4.1-mini -p            # other model, parallel tool calls
  pandora --mcp-config ./mcp.json -t 30s

  pandora mcp list                      # show servers and their tools
  pandora mcp call mcp__fs__list_dir '{"path":"."}'
  pandora config show                   # view effective configuration`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	RunE:              runChat,
}

var (
	configFile        string
	debugFlag         bool
	providerFlag      string
	modelFlag         string
	mcpConfigFlag     string
	startupTimeout    time.Duration
	parallelToolCalls bool
	printModeFlag     string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/pandora/config.yaml)")
	flags.BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	flags.StringVar(&providerFlag, "provider", "", "Model provider: openai or anthropic")
	flags.StringVarP(&modelFlag, "model", "m", "", "Model name (overrides config)")
	flags.StringVar(&mcpConfigFlag, "mcp-config", "", "MCP server configuration file (JSON or YAML)")
	flags.DurationVarP(&startupTimeout, "startup-timeout", "t", mcp.DefaultStartupTimeout, "Per-server MCP startup timeout")
	flags.BoolVarP(&parallelToolCalls, "parallel-tool-calls", "p", false, "Let the model request several tool calls per turn")
	flags.StringVar(&printModeFlag, "print-mode", "", "print_message output: rich or json (default rich on a terminal)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the application config and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	cfg.ApplyOverrides(providerFlag, modelFlag)

	flags := cmd.Flags()
	if flags.Changed("mcp-config") {
		cfg.MCP.ConfigPath = mcpConfigFlag
	}
	if flags.Changed("startup-timeout") {
		cfg.MCP.StartupTimeout = startupTimeout
	}
	if flags.Changed("parallel-tool-calls") {
		cfg.Agent.ParallelToolCalls = parallelToolCalls
	}
	if printModeFlag != "" {
		cfg.Agent.PrintMode = printModeFlag
	}
	if debugFlag {
		cfg.Log.Level = "debug"
	}
}

// loadMCPConfig reads the server configuration. An explicit path must
// exist; the default location is optional.
func loadMCPConfig(cfg *config.Config) (*mcp.Config, error) {
	if cfg.MCP.ConfigPath != "" {
		return mcp.LoadConfigFromPath(cfg.MCP.ConfigPath)
	}
	return mcp.LoadConfig()
}

func newOrchestrator(cfg *config.Config, servers *mcp.Config) *mcp.Orchestrator {
	return mcp.NewOrchestrator(servers, mcp.Options{
		StartupTimeout: cfg.MCP.StartupTimeout,
		CallTimeout:    cfg.MCP.CallTimeout,
	})
}
