package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tool-call lifecycle states. A call starts as input-available when the model
// emits it and becomes output-available exactly once, when its result is set.
const (
	ToolCallStateInput  = "input-available"
	ToolCallStateOutput = "output-available"
)

// ToolCall represents one function call in an assistant message.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	State     string         `json:"state,omitempty"` // input-available | output-available
	Output    any            `json:"output,omitempty"`
}

// Pending reports whether the call is still awaiting its output.
func (tc ToolCall) Pending() bool {
	return tc.State != ToolCallStateOutput
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
// Used by provider implementations when building the JSON request body.
func (tc ToolCall) ToWireMap() map[string]any {
	argsJSON, _ := json.Marshal(tc.Arguments)
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": string(argsJSON),
		},
	}
}

// Message is one entry in a workspace conversation.
//
// Role is one of: "system", "user", "assistant", "tool".
//
// ToolCalls is populated for assistant messages that invoke tools.
// ToolCallID and ToolName are set for tool-result messages.
// Model / Thinking / Mode are stamped on in-flight assistant turns so an
// interrupted stream can be resumed with the same settings.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // "tool" role only
	ToolName   string     `json:"tool_name,omitempty"`    // "tool" role only
	Model      string     `json:"model,omitempty"`
	Thinking   string     `json:"thinking,omitempty"`
	Mode       string     `json:"mode,omitempty"`
	Timestamp  string     `json:"timestamp,omitempty"` // RFC 3339
}

// PendingToolCalls returns the calls on m that are still awaiting output,
// optionally filtered by tool name ("" matches all).
func (m Message) PendingToolCalls(name string) []ToolCall {
	var out []ToolCall
	for _, tc := range m.ToolCalls {
		if tc.Pending() && (name == "" || tc.Name == name) {
			out = append(out, tc)
		}
	}
	return out
}

// FindToolCall returns a pointer into m.ToolCalls for the call with the given
// ID and name, or nil.
func (m *Message) FindToolCall(id, name string) *ToolCall {
	for i := range m.ToolCalls {
		if m.ToolCalls[i].ID == id && m.ToolCalls[i].Name == name {
			return &m.ToolCalls[i]
		}
	}
	return nil
}

// NewID returns a fresh workspace/message/tool-call identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current UTC time in the RFC 3339 form used for all
// persisted timestamps.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func NewSystemMessage(content string) Message {
	return Message{ID: NewID(), Role: "system", Content: content, Timestamp: Now()}
}

func NewUserMessage(content string) Message {
	return Message{ID: NewID(), Role: "user", Content: content, Timestamp: Now()}
}

func NewAssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{ID: NewID(), Role: "assistant", Content: content, ToolCalls: toolCalls, Timestamp: Now()}
}

func NewToolResultMessage(toolCallID, toolName, result string) Message {
	return Message{
		ID:         NewID(),
		Role:       "tool",
		Content:    result,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Timestamp:  Now(),
	}
}
