package task

import (
	"context"
	"log/slog"
	"time"
)

// scheduleCleanup arranges removal of a finished task's workspace after a
// short delay, so subscribers see the completion events before the
// workspace disappears.
func (s *Service) scheduleCleanup(taskID string) {
	time.AfterFunc(s.cleanupDelay, func() {
		if s.isDisposed() {
			return
		}
		s.CleanupTaskSubtree(taskID, map[string]bool{})
	})
}

// CleanupTaskSubtree removes a terminal task's workspace, then walks up to
// the parent: a terminal parent task whose last child just vanished is
// removed too, recursively. seen guards against parent cycles in corrupt
// metadata.
//
// A task with live child workspaces is deferred, not force-removed; the
// maintenance sweep retries once the children are gone.
func (s *Service) CleanupTaskSubtree(taskID string, seen map[string]bool) {
	if seen[taskID] {
		slog.Warn("cleanup cycle detected, stopping", "task", taskID)
		return
	}
	seen[taskID] = true

	st := s.cfg.GetWorkspaceTaskState(taskID)
	if st == nil || !st.Status.Terminal() {
		return
	}
	if _, ok := s.cfg.FindWorkspace(taskID); !ok {
		return
	}
	if len(s.cfg.ChildWorkspaces(taskID)) > 0 {
		slog.Debug("cleanup deferred, children still present", "task", taskID)
		return
	}

	if err := s.workspaces.Remove(context.Background(), taskID); err != nil {
		slog.Warn("remove task workspace", "task", taskID, "err", err)
		return
	}
	slog.Info("task workspace removed", "task", taskID, "status", st.Status)

	parentID := st.ParentWorkspaceID
	if parentID == "" {
		return
	}
	if pst := s.cfg.GetWorkspaceTaskState(parentID); pst != nil && pst.Status.Terminal() {
		s.CleanupTaskSubtree(parentID, seen)
	}
}
