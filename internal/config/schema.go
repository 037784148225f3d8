// Package config defines the mux configuration schema and the persisted
// workspace metadata store.
//
// JSON keys use camelCase to stay byte-compatible with config files written
// by the desktop app.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/muxworks/mux/internal/schema"
)

// ProviderConfig holds credentials for one LLM provider endpoint.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// AgentDefaults holds default values for agent streams.
type AgentDefaults struct {
	Model       string  `json:"model"`
	Thinking    string  `json:"thinkingLevel"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	MaxToolIter int     `json:"maxToolIterations"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Model:       "anthropic/claude-sonnet-4-5",
		Thinking:    schema.ThinkingMedium,
		MaxTokens:   8192,
		Temperature: 0.7,
		MaxToolIter: 40,
	}
}

// AgentsConfig wraps agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// GatewayConfig configures the local UI gateway.
type GatewayConfig struct {
	Port int `json:"port"`
}

// Config is the root configuration object.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    AgentsConfig              `json:"agents"`
	Tasks     schema.TaskSettings       `json:"tasks"`
	Gateway   GatewayConfig             `json:"gateway"`
	// DataDir overrides the default ~/.mux data directory. Used by tests.
	DataDir string `json:"dataDir,omitempty"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Providers: map[string]ProviderConfig{},
		Agents:    AgentsConfig{Defaults: defaultAgentDefaults()},
		Tasks:     schema.DefaultTaskSettings(),
		Gateway:   GatewayConfig{Port: 18900},
	}
}

// TaskSettings returns the clamped task orchestration settings.
func (c *Config) TaskSettings() schema.TaskSettings {
	return c.Tasks.Clamped()
}

// ResolvedDataDir returns the effective data directory.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	return DataDir()
}

// MatchProvider returns credentials for the given model, matching the
// "provider/model" prefix against configured provider names, falling back to
// the "custom" entry.
func (c *Config) MatchProvider(model string) (string, ProviderConfig) {
	if i := strings.IndexByte(model, '/'); i > 0 {
		name := model[:i]
		if pc, ok := c.Providers[name]; ok {
			return name, pc
		}
	}
	return "custom", c.Providers["custom"]
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
