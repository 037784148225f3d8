// Package tools implements the LLM-callable tools and their registry.
package tools

import (
	"context"
	"encoding/json"

	"github.com/muxworks/mux/internal/schema"
)

// Tool is the interface all LLM-callable tools must satisfy.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Canonical names of the built-in tools.
const (
	ToolExec        = "exec"
	ToolReadFile    = "read_file"
	ToolWriteFile   = "write_file"
	ToolTask        = "task"
	ToolAgentReport = "agent_report"
)

// Registry holds an immutable set of named tools.
type Registry struct {
	tools map[string]Tool
}

// Get returns the tool with the given name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Definitions returns the OpenAI function-calling definitions for every tool
// the policy permits.
func (r *Registry) Definitions(policy schema.ToolPolicy) []map[string]any {
	list := make([]map[string]any, 0, len(r.tools))
	for name, t := range r.tools {
		if !policy.Permits(name) {
			continue
		}
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        name,
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools map[string]Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{tools: make(map[string]Tool)}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(tool Tool) *RegistryBuilder {
	b.tools[tool.Name()] = tool
	return b
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	tools := make(map[string]Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	return &Registry{tools: tools}
}
