package task

import (
	"context"

	"github.com/muxworks/mux/internal/schema"
)

// The orchestrator depends on its collaborators through these interfaces so
// every external capability can be faked in tests. The concrete
// implementations are config.Store, workspace.Service, history.Service,
// partial.Store, and ai.Service.

// Config is the persisted workspace/task metadata store. It is the single
// source of truth for task status; the orchestrator never caches status.
type Config interface {
	FindWorkspace(id string) (schema.WorkspaceMeta, bool)
	GetWorkspaceTaskState(id string) *schema.TaskState
	SetWorkspaceTaskState(id string, state schema.TaskState) error
	CountRunningAgentTasks() int
	TaskSettings() schema.TaskSettings
	WorkspaceNestingDepth(id string) int
	AllWorkspaces() []schema.WorkspaceMeta
	ActiveAgentTaskWorkspaces() []schema.WorkspaceMeta
	ChildWorkspaces(parentID string) []schema.WorkspaceMeta
}

// Workspaces creates and removes workspaces and posts messages into their
// durable history.
type Workspaces interface {
	Create(ctx context.Context, opts schema.WorkspaceCreateOptions) (schema.WorkspaceMeta, error)
	Remove(ctx context.Context, id string) error
	AppendToHistoryAndEmit(id string, msg schema.Message) error
	ResolveRuntime(parent schema.WorkspaceMeta) schema.RuntimeConfig
}

// History reads and updates a workspace's durable message log.
type History interface {
	Get(workspaceID string) (schema.Messages, error)
	Update(workspaceID string, msg schema.Message) error
}

// Partials reads and writes a workspace's in-flight partial message.
type Partials interface {
	Read(workspaceID string) (*schema.Message, error)
	Write(workspaceID string, msg schema.Message) error
}

// Streams drives the AI stream engine for a workspace.
type Streams interface {
	SendMessage(ctx context.Context, workspaceID, prompt string, opts schema.SendOptions) error
	ResumeStream(ctx context.Context, workspaceID string, opts schema.SendOptions) error
	IsStreaming(workspaceID string) bool
}
