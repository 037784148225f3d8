package task

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/schema"
	"github.com/muxworks/mux/internal/shared/strutil"
)

// injectToolOutputToParent fulfills the parent's pending `task` tool call
// with output. The parent's in-flight partial is checked first (the usual
// case: the parent paused mid-turn on a foreground task call); committed
// history is the fallback after a restart flushed the partial.
//
// Returns true when a call was fulfilled or was already fulfilled, false
// when no matching call exists anywhere. Idempotent.
func (s *Service) injectToolOutputToParent(parentID, toolCallID string, output map[string]any) bool {
	raw, err := json.Marshal(output)
	if err != nil {
		slog.Error("marshal tool output", "parent", parentID, "toolCall", toolCallID, "err", err)
		return false
	}
	rendered := string(raw)

	partial, err := s.partials.Read(parentID)
	if err != nil {
		slog.Warn("read parent partial", "parent", parentID, "err", err)
	}
	if partial != nil {
		if tc := partial.FindToolCall(toolCallID, schema.ToolNameTask); tc != nil {
			if tc.State == schema.ToolCallStateOutput {
				return true
			}
			tc.State = schema.ToolCallStateOutput
			tc.Output = rendered
			if err := s.partials.Write(parentID, *partial); err != nil {
				slog.Error("write parent partial", "parent", parentID, "err", err)
				return false
			}
			s.events.Publish(bus.ToolCallEnd{
				WorkspaceID: parentID,
				ToolCallID:  tc.ID,
				ToolName:    tc.Name,
				Arguments:   tc.Arguments,
				Output:      rendered,
				Synthetic:   true,
			})
			return true
		}
	}

	msgs, err := s.history.Get(parentID)
	if err != nil {
		slog.Warn("read parent history", "parent", parentID, "err", err)
		return false
	}
	for i := len(msgs.Messages) - 1; i >= 0; i-- {
		m := &msgs.Messages[i]
		tc := m.FindToolCall(toolCallID, schema.ToolNameTask)
		if tc == nil {
			continue
		}
		if tc.State == schema.ToolCallStateOutput {
			return true
		}
		tc.State = schema.ToolCallStateOutput
		tc.Output = rendered
		if err := s.history.Update(parentID, *m); err != nil {
			slog.Error("update parent history", "parent", parentID, "err", err)
			return false
		}
		s.events.Publish(bus.ToolCallEnd{
			WorkspaceID: parentID,
			ToolCallID:  tc.ID,
			ToolName:    tc.Name,
			Arguments:   tc.Arguments,
			Output:      rendered,
			Synthetic:   true,
		})
		return true
	}

	slog.Warn("no pending task tool call to fulfill", "parent", parentID, "toolCall", toolCallID)
	return false
}

// maybeResumeParentStream resumes the parent's paused stream, but only when
// the parent is quiescent: not already streaming, holding a partial with no
// remaining pending task calls, and with no active descendant tasks.
func (s *Service) maybeResumeParentStream(parentID string) {
	if s.streams.IsStreaming(parentID) {
		return
	}
	partial, err := s.partials.Read(parentID)
	if err != nil {
		slog.Warn("resume check: read partial", "parent", parentID, "err", err)
		return
	}
	if partial == nil {
		return
	}
	if len(partial.PendingToolCalls(schema.ToolNameTask)) > 0 {
		return
	}
	if s.hasActiveDescendantTasks(parentID) {
		return
	}

	model := partial.Model
	if model == "" {
		model = s.defaultModel
	}
	if model == "" {
		model = fallbackModel
	}
	opts := schema.SendOptions{
		Model:    model,
		Thinking: strutil.OrDefault(partial.Thinking, s.defaultThinking),
		Mode:     strutil.OrDefault(partial.Mode, schema.ModeExec),
	}
	slog.Info("resuming parent stream", "parent", parentID, "model", model)
	if err := s.streams.ResumeStream(context.Background(), parentID, opts); err != nil {
		slog.Error("resume parent stream", "parent", parentID, "err", err)
	}
}

// hasActiveDescendantTasks reports whether any queued/running/awaiting task
// workspace sits below parentID in the task tree. The parent-chain walk
// carries a seen set so corrupt metadata cannot loop it.
func (s *Service) hasActiveDescendantTasks(parentID string) bool {
	for _, w := range s.cfg.ActiveAgentTaskWorkspaces() {
		seen := map[string]bool{}
		cur := w.TaskState.ParentWorkspaceID
		for cur != "" && !seen[cur] {
			if cur == parentID {
				return true
			}
			seen[cur] = true
			st := s.cfg.GetWorkspaceTaskState(cur)
			if st == nil {
				break
			}
			cur = st.ParentWorkspaceID
		}
	}
	return false
}
