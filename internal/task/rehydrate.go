package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/muxworks/mux/internal/agent"
	"github.com/muxworks/mux/internal/schema"
)

// Rehydrate recovers task workspaces after a process restart. Queued tasks
// rejoin the queue, running tasks are nudged to continue, tasks awaiting a
// report get the reminder again, and terminal leftovers are cleaned up.
//
// Foreground completion waits do not survive a restart; recovered tasks all
// behave as background tasks whose results reach the parent through
// injection.
func (s *Service) Rehydrate() {
	for _, w := range s.cfg.AllWorkspaces() {
		st := w.TaskState
		if st == nil {
			continue
		}
		switch st.Status {
		case schema.TaskQueued:
			slog.Info("rehydrate: re-queueing task", "task", w.ID)
			s.enqueue(w.ID)
		case schema.TaskRunning:
			slog.Info("rehydrate: nudging running task", "task", w.ID)
			s.nudge(w.ID, st, agent.ContinueNudge, schema.ToolPolicy{})
		case schema.TaskAwaitingReport:
			slog.Info("rehydrate: re-requesting report", "task", w.ID)
			s.nudge(w.ID, st, agent.ReportReminder, schema.ToolPolicy{Require: schema.ToolNameAgentReport})
		}
	}

	s.ProcessQueue()

	for _, w := range s.cfg.AllWorkspaces() {
		if w.TaskState != nil && w.TaskState.Status.Terminal() {
			s.CleanupTaskSubtree(w.ID, map[string]bool{})
		}
	}
}

// nudge restarts a recovered task's stream with the given prompt. A task
// whose stream cannot even be restarted escalates: awaiting_report tasks
// fall back to a synthesized report, running tasks fail outright.
func (s *Service) nudge(taskID string, st *schema.TaskState, prompt string, policy schema.ToolPolicy) {
	opts := schema.SendOptions{
		Model:    s.defaultModel,
		Thinking: s.defaultThinking,
		Mode:     schema.ModeExec,
		Policy:   policy,
	}
	if policy.Require == "" {
		if preset, ok := s.presets.Find(st.AgentType); ok {
			opts.Policy = schema.ToolPolicy{Allowed: preset.Tools}
		}
	}
	if err := s.streams.SendMessage(context.Background(), taskID, prompt, opts); err != nil {
		if st.Status == schema.TaskAwaitingReport {
			slog.Warn("rehydrate: reminder send failed, synthesizing fallback", "task", taskID, "err", err)
			s.completeWithFallbackReport(taskID)
			return
		}
		s.HandleTaskFailure(taskID, fmt.Errorf("rehydrate task stream: %w", err))
	}
}
