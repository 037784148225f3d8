// Package task implements the agent task orchestrator: it spawns subagent
// tasks as child workspaces, limits parallelism through a FIFO queue,
// collects agent_report results, injects them into the parent's pending task
// tool call, and resumes the parent's stream when the subtree has settled.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muxworks/mux/internal/agent"
	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/schema"
	"github.com/muxworks/mux/internal/shared/strutil"
)

// fallbackModel is the last resort when neither the parent's partial nor the
// configured default names a model.
const fallbackModel = "anthropic/claude-sonnet-4-5"

const (
	defaultGraceDelay   = 2 * time.Second
	defaultCleanupDelay = 5 * time.Second
)

// ErrDisposed is returned by CreateTask after Dispose, and used to reject
// outstanding foreground waits at disposal.
var ErrDisposed = errors.New("task service disposed")

// CreateTaskOptions are the inputs to CreateTask.
type CreateTaskOptions struct {
	ParentWorkspaceID string
	AgentType         string
	Prompt            string
	Description       string
	// ParentToolCallID names the pending `task` tool call in the parent
	// stream that receives this task's result. Foreground invocations only.
	ParentToolCallID string
	RunInBackground  bool
}

// CreateTaskResult is what CreateTask returns. Report is non-nil only for
// foreground calls, once the task has reported.
type CreateTaskResult struct {
	TaskID string
	Status schema.TaskStatus
	Report *Report
}

// Service is the task lifecycle orchestrator.
type Service struct {
	cfg        Config
	workspaces Workspaces
	history    History
	partials   Partials
	streams    Streams
	events     *bus.Bus
	presets    *agent.Library

	defaultModel    string
	defaultThinking string

	// graceDelay is how long a stream-end handler waits for an in-flight
	// agent_report tool-call-end to arrive before escalating. cleanupDelay
	// postpones workspace teardown so events propagate first.
	graceDelay   time.Duration
	cleanupDelay time.Duration

	mu       sync.Mutex
	queue    []queueEntry
	pending  map[string]chan outcome
	disposed bool

	unsubscribe func()
}

// NewService wires the orchestrator. Call Start to begin observing stream
// events and Dispose to tear down.
func NewService(
	cfg Config,
	workspaces Workspaces,
	history History,
	partials Partials,
	streams Streams,
	events *bus.Bus,
	presets *agent.Library,
	defaultModel, defaultThinking string,
) *Service {
	return &Service{
		cfg:             cfg,
		workspaces:      workspaces,
		history:         history,
		partials:        partials,
		streams:         streams,
		events:          events,
		presets:         presets,
		defaultModel:    defaultModel,
		defaultThinking: defaultThinking,
		graceDelay:      defaultGraceDelay,
		cleanupDelay:    defaultCleanupDelay,
		pending:         make(map[string]chan outcome),
	}
}

// Start subscribes to the event bus and begins dispatching tool-call-end and
// stream-end events. Registered once; handlers are status-guarded so
// re-entry degrades to a no-op.
func (s *Service) Start() {
	ch, cancel := s.events.Subscribe(bus.DefaultBuffer)
	s.unsubscribe = cancel

	go func() {
		for ev := range ch {
			switch e := ev.(type) {
			case bus.ToolCallEnd:
				if e.ToolName == schema.ToolNameAgentReport && !e.Synthetic {
					go s.onAgentReportEvent(e)
				}
			case bus.StreamEnd:
				go s.HandleStreamEnd(e.WorkspaceID)
			}
		}
	}()
}

// Dispose stops event handling and rejects every outstanding foreground
// wait. No state transitions occur after disposal.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.rejectAllPendingLocked(ErrDisposed)
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Service) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// CreateTask validates, creates, and (depending on free concurrency slots)
// starts or queues a new agent task. Validation failures are caller errors
// and leave no side effects.
//
// Background calls return immediately with the task's initial status.
// Foreground calls block until the task reports (result carries the report)
// or fails (error); there is no orchestrator-level timeout on that wait.
func (s *Service) CreateTask(ctx context.Context, opts CreateTaskOptions) (CreateTaskResult, error) {
	if s.isDisposed() {
		return CreateTaskResult{}, ErrDisposed
	}

	parent, ok := s.cfg.FindWorkspace(opts.ParentWorkspaceID)
	if !ok {
		return CreateTaskResult{}, fmt.Errorf("parent workspace %s not found", opts.ParentWorkspaceID)
	}
	if st := s.cfg.GetWorkspaceTaskState(opts.ParentWorkspaceID); st != nil && st.Status == schema.TaskReported {
		return CreateTaskResult{}, fmt.Errorf("parent task %s has already reported", opts.ParentWorkspaceID)
	}

	preset, ok := s.presets.Find(opts.AgentType)
	if !ok {
		return CreateTaskResult{}, fmt.Errorf("unknown agent type %q", opts.AgentType)
	}
	if opts.Prompt == "" {
		return CreateTaskResult{}, errors.New("task prompt must not be empty")
	}

	settings := s.cfg.TaskSettings()
	if depth := s.cfg.WorkspaceNestingDepth(opts.ParentWorkspaceID); depth >= settings.MaxTaskNestingDepth {
		return CreateTaskResult{}, fmt.Errorf(
			"task nesting depth %d reached (max %d)", depth, settings.MaxTaskNestingDepth)
	}

	name := preset.Type + "-" + shortSuffix()
	title := preset.Title + ": " + strutil.Truncate(strutil.OrDefault(opts.Description, opts.Prompt), 60)
	runtime := s.workspaces.ResolveRuntime(parent)

	meta, err := s.workspaces.Create(ctx, schema.WorkspaceCreateOptions{
		ProjectPath: parent.ProjectPath,
		Name:        name,
		Title:       title,
		Runtime:     runtime,
	})
	if err != nil {
		return CreateTaskResult{}, fmt.Errorf("create task workspace: %w", err)
	}
	taskID := meta.ID

	// Admission decision and state persist happen under the service mutex so
	// in-process creations cannot race each other past the parallelism cap.
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return CreateTaskResult{}, ErrDisposed
	}
	admitted := s.cfg.CountRunningAgentTasks() < settings.MaxParallelAgentTasks

	state := schema.TaskState{
		Status:            schema.TaskQueued,
		AgentType:         opts.AgentType,
		ParentWorkspaceID: opts.ParentWorkspaceID,
		Prompt:            opts.Prompt,
		Description:       opts.Description,
		ParentToolCallID:  opts.ParentToolCallID,
		QueuedAt:          schema.Now(),
	}
	if err := s.cfg.SetWorkspaceTaskState(taskID, state); err != nil {
		s.mu.Unlock()
		return CreateTaskResult{}, fmt.Errorf("persist task state: %w", err)
	}

	var wait chan outcome
	if !opts.RunInBackground {
		wait = s.registerPendingLocked(taskID)
	}
	if !admitted {
		s.queue = append(s.queue, queueEntry{taskID: taskID})
	}
	s.mu.Unlock()

	s.events.Publish(bus.TaskCreated{TaskID: taskID, ParentWorkspaceID: opts.ParentWorkspaceID})
	slog.Info("task created", "task", taskID, "agent", opts.AgentType,
		"parent", opts.ParentWorkspaceID, "queued", !admitted)

	status := schema.TaskQueued
	if admitted {
		s.startTask(taskID)
		status = schema.TaskRunning
	}

	if opts.RunInBackground {
		return CreateTaskResult{TaskID: taskID, Status: status}, nil
	}

	select {
	case out := <-wait:
		if out.err != nil {
			return CreateTaskResult{}, out.err
		}
		report := out.report
		return CreateTaskResult{TaskID: taskID, Status: schema.TaskReported, Report: &report}, nil
	case <-ctx.Done():
		s.dropPending(taskID)
		return CreateTaskResult{}, ctx.Err()
	}
}

// startTask transitions a task to running, stamps startedAt once, and fires
// its stream. A failure to even start the stream routes into the failure
// path so the task is never silently stuck.
func (s *Service) startTask(taskID string) {
	st := s.cfg.GetWorkspaceTaskState(taskID)
	if st == nil {
		slog.Warn("startTask: no task state", "task", taskID)
		return
	}
	if st.Status != schema.TaskQueued {
		return
	}

	st.Status = schema.TaskRunning
	if st.StartedAt == "" {
		st.StartedAt = schema.Now()
	}
	if err := s.cfg.SetWorkspaceTaskState(taskID, *st); err != nil {
		s.HandleTaskFailure(taskID, fmt.Errorf("persist running state: %w", err))
		return
	}

	preset, ok := s.presets.Find(st.AgentType)
	if !ok {
		s.HandleTaskFailure(taskID, fmt.Errorf("unknown agent type %q", st.AgentType))
		return
	}

	err := s.streams.SendMessage(context.Background(), taskID, st.Prompt, schema.SendOptions{
		Model:    s.defaultModel,
		Thinking: s.defaultThinking,
		Mode:     schema.ModeExec,
		Policy:   schema.ToolPolicy{Allowed: preset.Tools},
		System:   preset.Prompt,
	})
	if err != nil {
		s.HandleTaskFailure(taskID, fmt.Errorf("start task stream: %w", err))
	}
}

// Sweep re-drains the queue and retries cleanup of terminal task workspaces
// that are still present. Run periodically by the maintenance sweeper.
func (s *Service) Sweep() {
	if s.isDisposed() {
		return
	}
	s.ProcessQueue()
	for _, w := range s.cfg.AllWorkspaces() {
		if w.TaskState != nil && w.TaskState.Status.Terminal() {
			s.CleanupTaskSubtree(w.ID, map[string]bool{})
		}
	}
}

func (s *Service) onAgentReportEvent(e bus.ToolCallEnd) {
	markdown, _ := e.Arguments["report_markdown"].(string)
	title, _ := e.Arguments["title"].(string)
	if err := s.HandleAgentReport(e.WorkspaceID, markdown, title); err != nil {
		slog.Error("agent report rejected", "workspace", e.WorkspaceID, "err", err)
	}
}

// shortSuffix returns the short random suffix used in task workspace names.
func shortSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
