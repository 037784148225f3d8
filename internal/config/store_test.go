package config

import (
	"path/filepath"
	"testing"

	"github.com/muxworks/mux/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "workspaces.json"), schema.DefaultTaskSettings())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func addTask(t *testing.T, s *Store, id, parent string, status schema.TaskStatus) {
	t.Helper()
	if err := s.AddWorkspace(schema.WorkspaceMeta{ID: id, ProjectPath: "/p", CreatedAt: schema.Now()}); err != nil {
		t.Fatalf("AddWorkspace(%s): %v", id, err)
	}
	if err := s.SetWorkspaceTaskState(id, schema.TaskState{
		Status:            status,
		AgentType:         "explore",
		ParentWorkspaceID: parent,
		Prompt:            "p",
		QueuedAt:          schema.Now(),
	}); err != nil {
		t.Fatalf("SetWorkspaceTaskState(%s): %v", id, err)
	}
}

func TestStoreRoundTripsThroughDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.json")
	s, err := NewStore(path, schema.DefaultTaskSettings())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.AddWorkspace(schema.WorkspaceMeta{ID: "a", Name: "main", ProjectPath: "/p", CreatedAt: schema.Now()}); err != nil {
		t.Fatalf("AddWorkspace: %v", err)
	}
	if err := s.SetWorkspaceTaskState("a", schema.TaskState{Status: schema.TaskRunning, Prompt: "x", QueuedAt: schema.Now()}); err != nil {
		t.Fatalf("SetWorkspaceTaskState: %v", err)
	}

	reloaded, err := NewStore(path, schema.DefaultTaskSettings())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	w, ok := reloaded.FindWorkspace("a")
	if !ok {
		t.Fatal("workspace lost across reload")
	}
	if w.TaskState == nil || w.TaskState.Status != schema.TaskRunning {
		t.Fatalf("task state lost across reload: %+v", w.TaskState)
	}
}

func TestAddWorkspaceRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	meta := schema.WorkspaceMeta{ID: "dup", ProjectPath: "/p", CreatedAt: schema.Now()}
	if err := s.AddWorkspace(meta); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddWorkspace(meta); err == nil {
		t.Fatal("duplicate add succeeded")
	}
}

func TestCountRunningAgentTasksCountsSlotHolders(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", "", schema.TaskRunning)
	addTask(t, s, "t2", "", schema.TaskAwaitingReport)
	addTask(t, s, "t3", "", schema.TaskQueued)
	addTask(t, s, "t4", "", schema.TaskReported)
	addTask(t, s, "t5", "", schema.TaskFailed)

	if n := s.CountRunningAgentTasks(); n != 2 {
		t.Fatalf("CountRunningAgentTasks = %d, want 2 (running + awaiting_report)", n)
	}
}

func TestGetWorkspaceTaskStateReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", "", schema.TaskRunning)

	st := s.GetWorkspaceTaskState("t1")
	st.Status = schema.TaskFailed

	if again := s.GetWorkspaceTaskState("t1"); again.Status != schema.TaskRunning {
		t.Fatal("mutating the returned state changed the store")
	}
}

func TestWorkspaceNestingDepth(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddWorkspace(schema.WorkspaceMeta{ID: "root", ProjectPath: "/p", CreatedAt: schema.Now()}); err != nil {
		t.Fatalf("AddWorkspace: %v", err)
	}
	addTask(t, s, "t1", "root", schema.TaskRunning)
	addTask(t, s, "t2", "t1", schema.TaskRunning)

	if d := s.WorkspaceNestingDepth("root"); d != 0 {
		t.Errorf("root depth = %d, want 0", d)
	}
	if d := s.WorkspaceNestingDepth("t1"); d != 1 {
		t.Errorf("t1 depth = %d, want 1", d)
	}
	if d := s.WorkspaceNestingDepth("t2"); d != 2 {
		t.Errorf("t2 depth = %d, want 2", d)
	}
}

func TestWorkspaceNestingDepthSurvivesCycles(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "a", "b", schema.TaskRunning)
	addTask(t, s, "b", "a", schema.TaskRunning)

	// Must terminate; the exact depth at the cut is unimportant.
	_ = s.WorkspaceNestingDepth("a")
}

func TestChildWorkspaces(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddWorkspace(schema.WorkspaceMeta{ID: "root", ProjectPath: "/p", CreatedAt: schema.Now()}); err != nil {
		t.Fatalf("AddWorkspace: %v", err)
	}
	addTask(t, s, "c1", "root", schema.TaskRunning)
	addTask(t, s, "c2", "root", schema.TaskReported)
	addTask(t, s, "other", "c1", schema.TaskRunning)

	kids := s.ChildWorkspaces("root")
	if len(kids) != 2 {
		t.Fatalf("ChildWorkspaces = %d entries, want 2", len(kids))
	}
}

func TestRemoveWorkspaceUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.RemoveWorkspace("ghost"); err != nil {
		t.Fatalf("RemoveWorkspace: %v", err)
	}
}

func TestTaskSettingsClamped(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "w.json"),
		schema.TaskSettings{MaxParallelAgentTasks: 99, MaxTaskNestingDepth: 0})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got := s.TaskSettings()
	if got.MaxParallelAgentTasks != 10 {
		t.Errorf("MaxParallelAgentTasks = %d, want clamped to 10", got.MaxParallelAgentTasks)
	}
	if got.MaxTaskNestingDepth != 3 {
		t.Errorf("MaxTaskNestingDepth = %d, want default 3", got.MaxTaskNestingDepth)
	}
}
