package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the MCP server configuration document.
type Config struct {
	Servers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`
}

// ServerConfig represents a configured MCP server.
// Supports both stdio transport (Command/Args) and HTTP transport (URL).
type ServerConfig struct {
	// Type discriminator: "stdio" (default if command present) or "http"
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Env overrides are layered on top of the parent environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// TransportType returns the effective transport type for this server.
func (c ServerConfig) TransportType() string {
	if c.Type == "http" || c.URL != "" {
		return "http"
	}
	return "stdio"
}

// Validate checks that the server configuration is valid.
func (c *ServerConfig) Validate() error {
	switch c.Type {
	case "", "stdio", "http":
	default:
		return fmt.Errorf("unknown transport type %q", c.Type)
	}
	if c.TransportType() == "http" {
		if c.URL == "" {
			return fmt.Errorf("http transport requires url")
		}
		if c.Command != "" {
			return fmt.Errorf("cannot specify both url and command")
		}
		return nil
	}
	if c.Command == "" {
		return fmt.Errorf("stdio transport requires command")
	}
	return nil
}

var serverNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateServerName rejects names that cannot be embedded in a qualified tool name.
func validateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name is empty")
	}
	if strings.Contains(name, nameSeparator) {
		return fmt.Errorf("server name %q must not contain %q", name, nameSeparator)
	}
	if !serverNamePattern.MatchString(name) {
		return fmt.Errorf("server name %q may only contain letters, digits, '_' and '-'", name)
	}
	return nil
}

// Validate checks every server entry.
func (c *Config) Validate() error {
	for _, name := range c.ServerNames() {
		if err := validateServerName(name); err != nil {
			return err
		}
		server := c.Servers[name]
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	return nil
}

// ServerNames returns a sorted list of configured server names.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath returns the default path for mcp.json.
func DefaultConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "pandora", "mcp.json"), nil
}

// LoadConfig loads the configuration from the default path.
// A missing default file yields an empty configuration.
func LoadConfig() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfigFromPath(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return &Config{Servers: make(map[string]ServerConfig)}, nil
	}
	return cfg, err
}

// LoadConfigFromPath loads the configuration from a specific path. JSON is
// the default format; .yaml and .yml files are decoded as YAML.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = parseYAMLConfig(data)
	default:
		cfg, err = ParseConfig(data)
	}
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
			return nil, cerr
		}
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// ParseConfig decodes and validates a JSON configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Err: err}
	}
	servers, ok := raw["mcpServers"]
	if !ok {
		return nil, &ConfigError{Err: errors.New(`missing "mcpServers" section`)}
	}
	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(servers))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg.Servers); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("mcpServers: %w", err)}
	}
	return finishConfig(cfg)
}

func parseYAMLConfig(data []byte) (*Config, error) {
	var doc struct {
		Servers *map[string]ServerConfig `yaml:"mcpServers"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if doc.Servers == nil {
		return nil, &ConfigError{Err: errors.New(`missing "mcpServers" section`)}
	}
	return finishConfig(&Config{Servers: *doc.Servers})
}

func finishConfig(cfg *Config) (*Config, error) {
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}
