// Package workspace manages workspace lifecycle: creation, removal, and the
// bridge between callers and a workspace's stream engine and history.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/muxworks/mux/internal/ai"
	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/config"
	"github.com/muxworks/mux/internal/history"
	"github.com/muxworks/mux/internal/partial"
	"github.com/muxworks/mux/internal/schema"
)

// Service owns workspace creation and teardown and fronts the stream engine
// with workspace-existence checks.
type Service struct {
	store    *config.Store
	history  *history.Service
	partials *partial.Store
	ai       *ai.Service
	events   *bus.Bus
	dataDir  string
}

// NewService wires the workspace service. dataDir is the root under which
// per-workspace working directories live.
func NewService(
	store *config.Store,
	hist *history.Service,
	partials *partial.Store,
	engine *ai.Service,
	events *bus.Bus,
	dataDir string,
) *Service {
	return &Service{
		store:    store,
		history:  hist,
		partials: partials,
		ai:       engine,
		events:   events,
		dataDir:  dataDir,
	}
}

// Create registers a new workspace and materialises its working directory.
// Worktree runtimes get a git worktree cut from the trunk branch; local
// runtimes share the project directory.
func (s *Service) Create(ctx context.Context, opts schema.WorkspaceCreateOptions) (schema.WorkspaceMeta, error) {
	if opts.ProjectPath == "" {
		return schema.WorkspaceMeta{}, fmt.Errorf("project path must not be empty")
	}
	if opts.Runtime.Type == "" {
		opts.Runtime.Type = schema.RuntimeLocal
	}

	meta := schema.WorkspaceMeta{
		ID:          schema.NewID(),
		Name:        opts.Name,
		Title:       opts.Title,
		ProjectPath: opts.ProjectPath,
		Runtime:     opts.Runtime,
		CreatedAt:   schema.Now(),
	}

	if meta.Runtime.Type == schema.RuntimeWorktree {
		if err := s.addWorktree(ctx, meta); err != nil {
			return schema.WorkspaceMeta{}, fmt.Errorf("create worktree: %w", err)
		}
	}

	if err := s.store.AddWorkspace(meta); err != nil {
		if meta.Runtime.Type == schema.RuntimeWorktree {
			s.removeWorktree(ctx, meta)
		}
		return schema.WorkspaceMeta{}, err
	}

	slog.Info("workspace created", "workspace", meta.ID, "name", meta.Name, "runtime", meta.Runtime.Type)
	return meta, nil
}

// Remove tears a workspace down: record, history, partial, and any worktree
// or scratch directory. Removal of an unknown workspace is a no-op.
func (s *Service) Remove(ctx context.Context, id string) error {
	meta, ok := s.store.FindWorkspace(id)
	if !ok {
		return nil
	}

	if err := s.store.RemoveWorkspace(id); err != nil {
		return fmt.Errorf("remove workspace record: %w", err)
	}
	if err := s.history.Remove(id); err != nil {
		slog.Warn("remove workspace history", "workspace", id, "err", err)
	}
	if err := s.partials.Clear(id); err != nil {
		slog.Warn("clear workspace partial", "workspace", id, "err", err)
	}
	if meta.Runtime.Type == schema.RuntimeWorktree {
		s.removeWorktree(ctx, meta)
	}

	slog.Info("workspace removed", "workspace", id, "name", meta.Name)
	return nil
}

// WorkingDir returns the directory a workspace's tools execute in.
func (s *Service) WorkingDir(meta schema.WorkspaceMeta) string {
	if meta.Runtime.Type == schema.RuntimeWorktree {
		return s.worktreePath(meta)
	}
	return meta.ProjectPath
}

// SendMessage starts a stream turn for the workspace.
func (s *Service) SendMessage(ctx context.Context, id, prompt string, opts schema.SendOptions) error {
	if _, ok := s.store.FindWorkspace(id); !ok {
		return fmt.Errorf("workspace %s not found", id)
	}
	return s.ai.SendMessage(ctx, id, prompt, opts)
}

// ResumeStream continues a workspace's paused turn.
func (s *Service) ResumeStream(ctx context.Context, id string, opts schema.SendOptions) error {
	if _, ok := s.store.FindWorkspace(id); !ok {
		return fmt.Errorf("workspace %s not found", id)
	}
	return s.ai.ResumeStream(ctx, id, opts)
}

// IsStreaming reports whether the workspace has an active stream.
func (s *Service) IsStreaming(id string) bool {
	return s.ai.IsStreaming(id)
}

// AppendToHistoryAndEmit writes a message into the workspace's durable
// history and announces it on the bus.
func (s *Service) AppendToHistoryAndEmit(id string, msg schema.Message) error {
	if _, ok := s.store.FindWorkspace(id); !ok {
		return fmt.Errorf("workspace %s not found", id)
	}
	if err := s.history.Append(id, msg); err != nil {
		return err
	}
	s.events.Publish(bus.MessageAppended{WorkspaceID: id, Message: msg})
	return nil
}

func (s *Service) worktreePath(meta schema.WorkspaceMeta) string {
	return filepath.Join(s.dataDir, "worktrees", meta.ID)
}

func (s *Service) removeWorktree(ctx context.Context, meta schema.WorkspaceMeta) {
	path := s.worktreePath(meta)
	if err := gitWorktreeRemove(ctx, meta.ProjectPath, path); err != nil {
		slog.Warn("remove worktree", "workspace", meta.ID, "err", err)
	}
	if err := os.RemoveAll(path); err != nil {
		slog.Warn("remove worktree dir", "workspace", meta.ID, "err", err)
	}
}

func (s *Service) addWorktree(ctx context.Context, meta schema.WorkspaceMeta) error {
	path := s.worktreePath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return gitWorktreeAdd(ctx, meta.ProjectPath, path, "mux/"+meta.Name, meta.Runtime.TrunkBranch)
}
