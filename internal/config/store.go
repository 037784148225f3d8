package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/muxworks/mux/internal/schema"
)

// workspaceFile is the on-disk shape of workspaces.json.
type workspaceFile struct {
	Version    int                    `json:"version"`
	Workspaces []schema.WorkspaceMeta `json:"workspaces"`
}

// Store persists workspace metadata, including per-task TaskState, to a
// single JSON file. It is the single source of truth for task status; the
// orchestrator reads fresh state per operation and keeps no status cache.
type Store struct {
	path     string
	settings schema.TaskSettings

	mu   sync.Mutex
	file workspaceFile
}

// NewStore loads (or initialises) the workspace store at path.
func NewStore(path string, settings schema.TaskSettings) (*Store, error) {
	s := &Store{
		path:     path,
		settings: settings.Clamped(),
		file:     workspaceFile{Version: 1},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read workspace store %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.file); err != nil {
		return nil, fmt.Errorf("parse workspace store %s: %w", path, err)
	}
	return s, nil
}

// TaskSettings returns the clamped task orchestration settings.
func (s *Store) TaskSettings() schema.TaskSettings {
	return s.settings
}

// FindWorkspace returns the metadata for id.
func (s *Store) FindWorkspace(id string) (schema.WorkspaceMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.file.Workspaces[i], true
	}
	return schema.WorkspaceMeta{}, false
}

// AddWorkspace registers a new workspace. The ID must be unused.
func (s *Store) AddWorkspace(meta schema.WorkspaceMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(meta.ID) >= 0 {
		return fmt.Errorf("workspace %s already exists", meta.ID)
	}
	s.file.Workspaces = append(s.file.Workspaces, meta)
	return s.saveLocked()
}

// RemoveWorkspace deletes the workspace record. Unknown IDs are a no-op.
func (s *Store) RemoveWorkspace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	s.file.Workspaces = append(s.file.Workspaces[:i], s.file.Workspaces[i+1:]...)
	return s.saveLocked()
}

// AllWorkspaces returns a snapshot of every workspace record.
func (s *Store) AllWorkspaces() []schema.WorkspaceMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.WorkspaceMeta, len(s.file.Workspaces))
	copy(out, s.file.Workspaces)
	return out
}

// ChildWorkspaces returns every workspace parented (as a task) to parentID.
func (s *Store) ChildWorkspaces(parentID string) []schema.WorkspaceMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.WorkspaceMeta
	for _, w := range s.file.Workspaces {
		if w.TaskState != nil && w.TaskState.ParentWorkspaceID == parentID {
			out = append(out, w)
		}
	}
	return out
}

// GetWorkspaceTaskState returns a copy of the task state for id, or nil when
// the workspace does not exist or is not a task workspace.
func (s *Store) GetWorkspaceTaskState(id string) *schema.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 || s.file.Workspaces[i].TaskState == nil {
		return nil
	}
	st := *s.file.Workspaces[i].TaskState
	return &st
}

// SetWorkspaceTaskState overwrites the task state for id.
func (s *Store) SetWorkspaceTaskState(id string, state schema.TaskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("workspace %s not found", id)
	}
	st := state
	s.file.Workspaces[i].TaskState = &st
	return s.saveLocked()
}

// CountRunningAgentTasks returns the number of tasks occupying a concurrency
// slot (running or awaiting_report; queued tasks hold no slot).
func (s *Store) CountRunningAgentTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.file.Workspaces {
		if w.TaskState == nil {
			continue
		}
		if w.TaskState.Status == schema.TaskRunning || w.TaskState.Status == schema.TaskAwaitingReport {
			n++
		}
	}
	return n
}

// ActiveAgentTaskWorkspaces returns every task workspace whose state is
// non-terminal.
func (s *Store) ActiveAgentTaskWorkspaces() []schema.WorkspaceMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.WorkspaceMeta
	for _, w := range s.file.Workspaces {
		if w.TaskState != nil && w.TaskState.Status.Active() {
			out = append(out, w)
		}
	}
	return out
}

// WorkspaceNestingDepth returns how deep id sits in the task tree: 0 for a
// plain workspace, parent depth + 1 for a task workspace. Parent chains are
// cycle-guarded; a cycle terminates the walk.
func (s *Store) WorkspaceNestingDepth(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 0
	seen := map[string]bool{}
	cur := id
	for {
		if seen[cur] {
			slog.Warn("workspace parent chain contains a cycle", "workspace", id)
			return depth
		}
		seen[cur] = true

		i := s.indexLocked(cur)
		if i < 0 || s.file.Workspaces[i].TaskState == nil {
			return depth
		}
		depth++
		cur = s.file.Workspaces[i].TaskState.ParentWorkspaceID
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.file.Workspaces {
		if s.file.Workspaces[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create workspace store dir: %w", err)
	}
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace store: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write workspace store %s: %w", s.path, err)
	}
	return nil
}
