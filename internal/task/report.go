package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/muxworks/mux/internal/agent"
	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/schema"
)

// HandleAgentReport is the single completion path for a task. It transitions
// the task to reported, settles the foreground waiter, posts the report into
// the parent's history, fulfills the parent's pending task tool call, and
// frees a concurrency slot.
//
// Idempotent: a second report for an already-reported task is a no-op.
func (s *Service) HandleAgentReport(taskID, markdown, title string) error {
	if markdown == "" {
		return fmt.Errorf("agent report for %s has empty report_markdown", taskID)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	st := s.cfg.GetWorkspaceTaskState(taskID)
	if st == nil {
		s.mu.Unlock()
		return fmt.Errorf("workspace %s is not an agent task", taskID)
	}
	switch st.Status {
	case schema.TaskReported:
		s.mu.Unlock()
		return nil
	case schema.TaskFailed:
		s.mu.Unlock()
		slog.Warn("report arrived for failed task, ignoring", "task", taskID)
		return nil
	}

	st.Status = schema.TaskReported
	st.ReportedAt = schema.Now()
	st.ReportMarkdown = markdown
	st.ReportTitle = title
	if err := s.cfg.SetWorkspaceTaskState(taskID, *st); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist reported state: %w", err)
	}
	parentID := st.ParentWorkspaceID
	parentToolCallID := st.ParentToolCallID
	s.mu.Unlock()

	slog.Info("task reported", "task", taskID, "title", title)
	s.events.Publish(bus.TaskCompleted{
		TaskID:            taskID,
		ParentWorkspaceID: parentID,
		ReportMarkdown:    markdown,
		ReportTitle:       title,
	})
	s.settlePending(taskID, outcome{report: Report{Markdown: markdown, Title: title}})

	// Everything past the transition is best-effort: the report is already
	// durable, so delivery problems are logged, not returned.
	s.postReportToParent(parentID, markdown, title)
	if parentToolCallID != "" {
		output := map[string]any{
			"status":         "completed",
			"taskId":         taskID,
			"reportMarkdown": markdown,
			"reportTitle":    title,
		}
		if s.injectToolOutputToParent(parentID, parentToolCallID, output) {
			s.maybeResumeParentStream(parentID)
		}
	}

	s.ProcessQueue()
	s.scheduleCleanup(taskID)
	return nil
}

// HandleStreamEnd escalates a task whose stream ended without a report. The
// first such end sends a reminder turn restricted to the agent_report tool;
// the second synthesizes a fallback report from the last assistant text.
func (s *Service) HandleStreamEnd(workspaceID string) {
	st := s.cfg.GetWorkspaceTaskState(workspaceID)
	if st == nil || st.Status.Terminal() || st.Status == schema.TaskQueued {
		return
	}

	// A report tool-call-end may still be in flight on the bus; give it a
	// moment before deciding the turn really ended reportless.
	time.Sleep(s.graceDelay)

	// The re-check and transition run under the service mutex, like the
	// report and failure handlers: a report committing concurrently must not
	// be overwritten with a stale running snapshot.
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	st = s.cfg.GetWorkspaceTaskState(workspaceID)
	if st == nil || st.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	status := st.Status
	if status == schema.TaskRunning {
		st.Status = schema.TaskAwaitingReport
		if err := s.cfg.SetWorkspaceTaskState(workspaceID, *st); err != nil {
			s.mu.Unlock()
			slog.Error("persist awaiting_report", "task", workspaceID, "err", err)
			return
		}
	}
	s.mu.Unlock()

	switch status {
	case schema.TaskRunning:
		slog.Info("task ended without report, sending reminder", "task", workspaceID)
		err := s.streams.SendMessage(context.Background(), workspaceID, agent.ReportReminder, schema.SendOptions{
			Model:    s.defaultModel,
			Thinking: s.defaultThinking,
			Mode:     schema.ModeExec,
			Policy:   schema.ToolPolicy{Require: schema.ToolNameAgentReport},
		})
		if err != nil {
			slog.Warn("report reminder send failed, falling back", "task", workspaceID, "err", err)
			s.completeWithFallbackReport(workspaceID)
		}
	case schema.TaskAwaitingReport:
		// Already reminded once. No second reminder.
		slog.Info("reminder turn also ended without report, synthesizing fallback", "task", workspaceID)
		s.completeWithFallbackReport(workspaceID)
	}
}

// completeWithFallbackReport synthesizes a report from the task's last
// assistant message so the parent is never left waiting forever.
func (s *Service) completeWithFallbackReport(taskID string) {
	markdown := agent.FallbackReportPlaceholder
	if msgs, err := s.history.Get(taskID); err != nil {
		slog.Warn("fallback report: history read failed", "task", taskID, "err", err)
	} else if text := msgs.LastAssistantText(); text != "" {
		markdown = text
	}
	if err := s.HandleAgentReport(taskID, markdown, "Task ended without report"); err != nil {
		slog.Error("fallback report rejected", "task", taskID, "err", err)
	}
}

// HandleTaskFailure is the single failure path. Mirrors HandleAgentReport:
// transition, settle the waiter with the error, notify the parent, free the
// slot. A failure after a successful report is ignored: reported wins.
func (s *Service) HandleTaskFailure(taskID string, cause error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	st := s.cfg.GetWorkspaceTaskState(taskID)
	if st == nil || st.Status == schema.TaskFailed {
		s.mu.Unlock()
		return
	}
	if st.Status == schema.TaskReported {
		s.mu.Unlock()
		slog.Warn("failure arrived for reported task, ignoring", "task", taskID, "err", cause)
		return
	}

	st.Status = schema.TaskFailed
	if err := s.cfg.SetWorkspaceTaskState(taskID, *st); err != nil {
		s.mu.Unlock()
		slog.Error("persist failed state", "task", taskID, "err", err)
		return
	}
	parentID := st.ParentWorkspaceID
	parentToolCallID := st.ParentToolCallID
	s.mu.Unlock()

	slog.Error("task failed", "task", taskID, "err", cause)
	s.events.Publish(bus.TaskFailed{TaskID: taskID, ParentWorkspaceID: parentID, Error: cause.Error()})
	s.settlePending(taskID, outcome{err: cause})

	msg := schema.NewUserMessage(fmt.Sprintf("[Task failed: %s]\n\n%v", taskID, cause))
	if err := s.workspaces.AppendToHistoryAndEmit(parentID, msg); err != nil {
		slog.Warn("post failure to parent history", "parent", parentID, "err", err)
	}
	if parentToolCallID != "" {
		output := map[string]any{
			"status": "failed",
			"taskId": taskID,
			"error":  cause.Error(),
		}
		if s.injectToolOutputToParent(parentID, parentToolCallID, output) {
			s.maybeResumeParentStream(parentID)
		}
	}

	s.ProcessQueue()
	s.scheduleCleanup(taskID)
}

// postReportToParent appends the report to the parent's history as a user
// message so it survives even if tool-call injection cannot find a target.
func (s *Service) postReportToParent(parentID, markdown, title string) {
	body := fmt.Sprintf("[Task report: %s]\n\n%s", title, markdown)
	if title == "" {
		body = "[Task report]\n\n" + markdown
	}
	if err := s.workspaces.AppendToHistoryAndEmit(parentID, schema.NewUserMessage(body)); err != nil {
		slog.Warn("post report to parent history", "parent", parentID, "err", err)
	}
}
