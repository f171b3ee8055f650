package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Print modes for the communication action.
const (
	PrintModeRich = "rich"
	PrintModeJSON = "json"
)

type Config struct {
	Provider  string          `mapstructure:"provider" yaml:"provider"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	MCP       MCPConfig       `mapstructure:"mcp" yaml:"mcp"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// AgentConfig configures the dispatch engine and its local tools.
type AgentConfig struct {
	SystemPrompt       string        `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"` // overrides the built-in prompt
	MaxOutputTokens    int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	ParallelToolCalls  bool          `mapstructure:"parallel_tool_calls" yaml:"parallel_tool_calls"`
	MaxParallelTools   int           `mapstructure:"max_parallel_tools" yaml:"max_parallel_tools"` // 0 = unlimited
	MaxAutonomousTurns int           `mapstructure:"max_autonomous_turns" yaml:"max_autonomous_turns"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	MaxTurnRetries     int           `mapstructure:"max_turn_retries" yaml:"max_turn_retries"`
	PrintMode          string        `mapstructure:"print_mode" yaml:"print_mode"`       // rich or json
	AllowedTools       []string      `mapstructure:"allowed_tools" yaml:"allowed_tools"` // glob patterns
	Tools              []string      `mapstructure:"tools" yaml:"tools"`                 // enabled local tools, empty = all
}

type MCPConfig struct {
	ConfigPath     string        `mapstructure:"config_path" yaml:"config_path,omitempty"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// Load reads the config file (optional unless configFile is set), applies
// defaults and PANDORA_* environment overrides, and resolves API keys.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("PANDORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.resolve()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("agent.system_prompt", "")
	v.SetDefault("agent.max_output_tokens", 0)
	v.SetDefault("agent.parallel_tool_calls", false)
	v.SetDefault("agent.max_parallel_tools", 0)
	v.SetDefault("agent.max_autonomous_turns", 20)
	v.SetDefault("agent.retry_backoff", "1s")
	v.SetDefault("agent.max_turn_retries", 3)
	v.SetDefault("agent.print_mode", "")
	v.SetDefault("agent.allowed_tools", []string{})
	v.SetDefault("agent.tools", []string{})
	v.SetDefault("mcp.config_path", "")
	v.SetDefault("mcp.startup_timeout", "10s")
	v.SetDefault("mcp.call_timeout", "60s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
}

func (c *Config) resolve() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))

	c.OpenAI.APIKey = expandEnv(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.OpenAI.BaseURL = expandEnv(c.OpenAI.BaseURL)

	c.Anthropic.APIKey = expandEnv(c.Anthropic.APIKey)
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if c.Agent.PrintMode == "" {
		c.Agent.PrintMode = DefaultPrintMode()
	}
}

// ApplyOverrides applies provider and model overrides to the config.
// If model is non-empty, it overrides the model for the active provider.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = strings.ToLower(provider)
	}
	if model != "" {
		switch c.Provider {
		case "openai":
			c.OpenAI.Model = model
		case "anthropic":
			c.Anthropic.Model = model
		}
	}
}

// ActiveModel returns the model of the selected provider.
func (c *Config) ActiveModel() string {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic.Model
	default:
		return c.OpenAI.Model
	}
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"openai", "anthropic"}, c.Provider) {
		errs = append(errs, fmt.Errorf("unknown provider %q (want openai or anthropic)", c.Provider))
	}
	if c.Agent.PrintMode != PrintModeRich && c.Agent.PrintMode != PrintModeJSON {
		errs = append(errs, fmt.Errorf("invalid agent.print_mode %q (want rich or json)", c.Agent.PrintMode))
	}
	if c.Agent.MaxParallelTools < 0 {
		errs = append(errs, fmt.Errorf("agent.max_parallel_tools must not be negative"))
	}
	if c.Agent.MaxOutputTokens < 0 {
		errs = append(errs, fmt.Errorf("agent.max_output_tokens must not be negative"))
	}
	if c.MCP.StartupTimeout < 0 || c.MCP.CallTimeout < 0 || c.Agent.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("timeouts must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.OpenAI.APIKey = maskSecret(c.OpenAI.APIKey)
	out.Anthropic.APIKey = maskSecret(c.Anthropic.APIKey)
	out.Agent.AllowedTools = slices.Clone(c.Agent.AllowedTools)
	out.Agent.Tools = slices.Clone(c.Agent.Tools)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// DefaultPrintMode is rich on a terminal and json otherwise.
func DefaultPrintMode() string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return PrintModeRich
	}
	return PrintModeJSON
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for pandora.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "pandora"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "pandora"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
