package schema

// Names of the two tools the task orchestrator observes on the event bus.
const (
	ToolNameTask        = "task"
	ToolNameAgentReport = "agent_report"
)

// TaskStatus is the lifecycle state of an agent task.
//
// Transitions are monotonic:
//
//	queued → running → {awaiting_report → reported | reported} | failed
//
// A task never re-enters queued once started; restart rehydration re-enqueues
// cold queued tasks, which is a startup special case, not a live transition.
type TaskStatus string

const (
	TaskQueued         TaskStatus = "queued"
	TaskRunning        TaskStatus = "running"
	TaskAwaitingReport TaskStatus = "awaiting_report"
	TaskReported       TaskStatus = "reported"
	TaskFailed         TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskReported || s == TaskFailed
}

// Active reports whether the task still occupies (or will occupy) a
// concurrency slot.
func (s TaskStatus) Active() bool {
	return s == TaskQueued || s == TaskRunning || s == TaskAwaitingReport
}

// TaskState is the persisted task metadata attached to a task workspace.
// Exactly one TaskState exists per task workspace, created with the
// workspace and never re-created.
type TaskState struct {
	Status            TaskStatus `json:"taskStatus"`
	AgentType         string     `json:"agentType"`
	ParentWorkspaceID string     `json:"parentWorkspaceId"`
	Prompt            string     `json:"prompt"`
	Description       string     `json:"description,omitempty"`
	// ParentToolCallID identifies the pending `task` tool call in the
	// parent's message stream that receives this task's result. Set only
	// for foreground invocations.
	ParentToolCallID string `json:"parentToolCallId,omitempty"`
	QueuedAt         string `json:"queuedAt,omitempty"`
	StartedAt        string `json:"startedAt,omitempty"`
	ReportedAt       string `json:"reportedAt,omitempty"`
	ReportMarkdown   string `json:"reportMarkdown,omitempty"`
	ReportTitle      string `json:"reportTitle,omitempty"`
}

// TaskSettings bounds task orchestration. Values are clamped on load.
type TaskSettings struct {
	MaxParallelAgentTasks int `json:"maxParallelAgentTasks"` // default 3, range 1–10
	MaxTaskNestingDepth   int `json:"maxTaskNestingDepth"`   // default 3, range 1–5
}

// DefaultTaskSettings returns the documented defaults.
func DefaultTaskSettings() TaskSettings {
	return TaskSettings{MaxParallelAgentTasks: 3, MaxTaskNestingDepth: 3}
}

// Clamped returns a copy of s with every value forced into its valid range.
// Zero values fall back to the defaults.
func (s TaskSettings) Clamped() TaskSettings {
	out := s
	if out.MaxParallelAgentTasks == 0 {
		out.MaxParallelAgentTasks = 3
	}
	if out.MaxParallelAgentTasks < 1 {
		out.MaxParallelAgentTasks = 1
	}
	if out.MaxParallelAgentTasks > 10 {
		out.MaxParallelAgentTasks = 10
	}
	if out.MaxTaskNestingDepth == 0 {
		out.MaxTaskNestingDepth = 3
	}
	if out.MaxTaskNestingDepth < 1 {
		out.MaxTaskNestingDepth = 1
	}
	if out.MaxTaskNestingDepth > 5 {
		out.MaxTaskNestingDepth = 5
	}
	return out
}
