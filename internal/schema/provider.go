package schema

import "context"

// ChatOptions configures a single provider call.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// RequireTool, when set, forces the model to call that tool
	// (OpenAI tool_choice = {"type":"function", ...}).
	RequireTool string
}

// NewChatOptions builds ChatOptions from the common settings triple.
func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{Model: model, MaxTokens: maxTokens, Temperature: temperature}
}

// ToolCallResponse is one tool invocation returned by the model.
type ToolCallResponse struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// LLMResponse is the parsed result of one provider call.
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCallResponse
}

// LLMProvider is the contract all model backends implement.
type LLMProvider interface {
	Chat(ctx context.Context, messages Messages, tools []map[string]any, opts ChatOptions) (LLMResponse, error)
	DefaultModel() string
}
