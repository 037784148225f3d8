package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/muxworks/mux/internal/task"
)

// Spawner creates agent tasks. Implemented by task.Service; bound after
// container construction to break the tools -> task -> tools cycle that a
// constructor argument would create.
type Spawner interface {
	CreateTask(ctx context.Context, opts task.CreateTaskOptions) (task.CreateTaskResult, error)
}

// TaskTool lets an agent delegate work to a subagent running in its own
// workspace. Background invocations return immediately with the task ID;
// foreground invocations are intercepted by the stream engine, which pauses
// the calling stream until the subagent reports.
type TaskTool struct {
	spawner    Spawner
	agentTypes func() []string
}

// NewTaskTool builds the tool. agentTypes supplies the valid agent_type
// values for the schema description.
func NewTaskTool(agentTypes func() []string) *TaskTool {
	return &TaskTool{agentTypes: agentTypes}
}

// SetSpawner binds the task orchestrator. Must be called before the tool is
// first executed.
func (t *TaskTool) SetSpawner(s Spawner) { t.spawner = s }

func (t *TaskTool) Name() string { return ToolTask }

func (t *TaskTool) Description() string {
	return "Delegate a piece of work to a subagent running in its own workspace. " +
		"The subagent works autonomously and delivers its result via a report. " +
		"Set run_in_background=true to keep working while the subagent runs; " +
		"otherwise your turn pauses until the report arrives."
}

func (t *TaskTool) Parameters() json.RawMessage {
	types := "explore, plan, build, review"
	if t.agentTypes != nil {
		if list := t.agentTypes(); len(list) > 0 {
			types = strings.Join(list, ", ")
		}
	}
	schema := fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "agent_type": {"type": "string", "description": "Kind of subagent to run. One of: %s."},
    "prompt": {"type": "string", "description": "Full instructions for the subagent. It sees nothing else from this conversation."},
    "description": {"type": "string", "description": "Short human-readable label for the task."},
    "run_in_background": {"type": "boolean", "description": "Run without pausing this turn. Defaults to false."}
  },
  "required": ["agent_type", "prompt"]
}`, types)
	return json.RawMessage(schema)
}

// Execute handles background invocations. Foreground invocations never reach
// Execute: the stream engine intercepts them and pauses the turn instead.
func (t *TaskTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.spawner == nil {
		return "Error: task orchestrator not available", nil
	}
	workspaceID := WorkspaceIDFromContext(ctx)
	if workspaceID == "" {
		return "Error: task tool called outside a workspace stream", nil
	}

	agentType, _ := params["agent_type"].(string)
	prompt, _ := params["prompt"].(string)
	description, _ := params["description"].(string)
	background, _ := params["run_in_background"].(bool)

	if !background {
		return "Error: foreground task calls are handled by the stream engine", nil
	}

	res, err := t.spawner.CreateTask(ctx, task.CreateTaskOptions{
		ParentWorkspaceID: workspaceID,
		AgentType:         agentType,
		Prompt:            prompt,
		Description:       description,
		RunInBackground:   true,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}

	out, _ := json.Marshal(map[string]any{
		"status": string(res.Status),
		"taskId": res.TaskID,
		"note":   "The task runs in the background. Its report will be posted into this conversation when ready.",
	})
	return string(out), nil
}
