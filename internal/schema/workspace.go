package schema

// Runtime kinds a workspace can run under.
const (
	RuntimeLocal    = "local"
	RuntimeWorktree = "worktree"
)

// RuntimeConfig describes where a workspace's agent executes.
// Worktree runtimes carry the trunk branch the worktree was cut from.
type RuntimeConfig struct {
	Type        string `json:"type"` // local | worktree
	TrunkBranch string `json:"trunkBranch,omitempty"`
}

// WorkspaceMeta is the persisted record for one workspace.
// TaskState is non-nil only for workspaces spawned as agent tasks.
type WorkspaceMeta struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	ProjectPath string        `json:"projectPath"`
	Runtime     RuntimeConfig `json:"runtime"`
	CreatedAt   string        `json:"createdAt"`
	TaskState   *TaskState    `json:"taskState,omitempty"`
}

// IsTask reports whether the workspace was spawned as an agent task.
func (w WorkspaceMeta) IsTask() bool {
	return w.TaskState != nil
}
