// Package bus carries typed events between the stream engine, the task
// orchestrator, and the UI gateway.
package bus

import "github.com/muxworks/mux/internal/schema"

// Event is implemented by every event published on the Bus.
// Kind returns a stable string identifier used on the gateway wire.
type Event interface {
	Kind() string
}

// ToolCallEnd is published when a tool call has its output available, either
// because the stream engine executed it or because the task orchestrator
// injected a result (Synthetic = true).
type ToolCallEnd struct {
	WorkspaceID string         `json:"workspaceId"`
	ToolCallID  string         `json:"toolCallId"`
	ToolName    string         `json:"toolName"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Output      any            `json:"output,omitempty"`
	Synthetic   bool           `json:"synthetic,omitempty"`
}

func (ToolCallEnd) Kind() string { return "tool-call-end" }

// StreamEnd is published when a workspace's stream turn finishes, whether it
// completed cleanly, paused on a pending task tool call, or errored.
type StreamEnd struct {
	WorkspaceID string `json:"workspaceId"`
	Error       string `json:"error,omitempty"`
}

func (StreamEnd) Kind() string { return "stream-end" }

// MessageAppended is published when a message lands in a workspace's durable
// history so UI clients can render it without polling.
type MessageAppended struct {
	WorkspaceID string         `json:"workspaceId"`
	Message     schema.Message `json:"message"`
}

func (MessageAppended) Kind() string { return "message-appended" }

// TaskCreated is published once per task, at creation time.
type TaskCreated struct {
	TaskID            string `json:"taskId"`
	ParentWorkspaceID string `json:"parentWorkspaceId"`
}

func (TaskCreated) Kind() string { return "task-created" }

// TaskCompleted is published once per task, at the reported transition.
type TaskCompleted struct {
	TaskID            string `json:"taskId"`
	ParentWorkspaceID string `json:"parentWorkspaceId"`
	ReportMarkdown    string `json:"reportMarkdown"`
	ReportTitle       string `json:"reportTitle,omitempty"`
}

func (TaskCompleted) Kind() string { return "task-completed" }

// TaskFailed is published once per task, at the failed transition.
type TaskFailed struct {
	TaskID            string `json:"taskId"`
	ParentWorkspaceID string `json:"parentWorkspaceId"`
	Error             string `json:"error"`
}

func (TaskFailed) Kind() string { return "task-failed" }
