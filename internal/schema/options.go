package schema

// Thinking levels accepted by SendOptions.Thinking.
const (
	ThinkingOff    = "off"
	ThinkingMedium = "medium"
	ThinkingHigh   = "high"
)

// Execution modes for a stream turn.
const (
	ModeExec = "exec"
	ModePlan = "plan"
)

// ToolPolicy restricts which tools a stream turn may call.
//
// Allowed, when non-empty, whitelists tool names. Require, when set, forces
// the model to call that specific tool (used for agent_report reminders).
type ToolPolicy struct {
	Allowed []string `json:"allowed,omitempty"`
	Require string   `json:"require,omitempty"`
}

// Permits reports whether the policy allows calling the named tool.
func (p ToolPolicy) Permits(name string) bool {
	if p.Require != "" {
		return name == p.Require
	}
	if len(p.Allowed) == 0 {
		return true
	}
	for _, a := range p.Allowed {
		if a == name {
			return true
		}
	}
	return false
}

// SendOptions configures one stream turn.
// System, when set on the first turn of a workspace, seeds the system prompt.
type SendOptions struct {
	Model    string     `json:"model,omitempty"`
	Thinking string     `json:"thinking,omitempty"`
	Mode     string     `json:"mode,omitempty"`
	Policy   ToolPolicy `json:"policy,omitempty"`
	System   string     `json:"system,omitempty"`
}

// WorkspaceCreateOptions configures workspace creation.
type WorkspaceCreateOptions struct {
	ProjectPath string
	Name        string
	Title       string
	Runtime     RuntimeConfig
}
