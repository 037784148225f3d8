// Package agent defines the built-in agent presets that drive task
// workspaces: each preset pairs a system prompt with a tool policy.
package agent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// Preset describes one built-in agent type.
type Preset struct {
	Type   string   `yaml:"type"`
	Title  string   `yaml:"title"`
	Prompt string   `yaml:"prompt"`
	Tools  []string `yaml:"tools"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Library holds the loaded presets, keyed by type.
type Library struct {
	presets map[string]Preset
	order   []string
}

// LoadLibrary parses the embedded presets and, when overrideDir is non-empty,
// merges user overrides from <overrideDir>/presets.yaml on top (matched by
// type). A malformed override file is logged and skipped.
func LoadLibrary(overrideDir string) (*Library, error) {
	lib := &Library{presets: map[string]Preset{}}

	var builtin presetFile
	if err := yaml.Unmarshal(builtinPresets, &builtin); err != nil {
		return nil, fmt.Errorf("parse builtin presets: %w", err)
	}
	for _, p := range builtin.Presets {
		lib.presets[p.Type] = p
		lib.order = append(lib.order, p.Type)
	}

	if overrideDir != "" {
		path := filepath.Join(overrideDir, "presets.yaml")
		if data, err := os.ReadFile(path); err == nil {
			var override presetFile
			if err := yaml.Unmarshal(data, &override); err != nil {
				slog.Warn("ignoring malformed presets override", "path", path, "err", err)
			} else {
				for _, p := range override.Presets {
					if _, known := lib.presets[p.Type]; !known {
						lib.order = append(lib.order, p.Type)
					}
					lib.presets[p.Type] = p
				}
			}
		}
	}
	return lib, nil
}

// Find returns the preset for the given agent type.
func (l *Library) Find(agentType string) (Preset, bool) {
	p, ok := l.presets[agentType]
	return p, ok
}

// Types returns all known agent types in declaration order.
func (l *Library) Types() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}
