// Package ai runs the streaming agent loop for a workspace: provider calls,
// tool execution, partial persistence, and the pause/resume protocol around
// foreground subagent tasks.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/schema"
	"github.com/muxworks/mux/internal/task"
	"github.com/muxworks/mux/internal/tools"
)

// TaskSpawner creates agent tasks. Implemented by task.Service and bound via
// SetTaskSpawner after construction, because task.Service itself depends on
// this package's stream engine.
type TaskSpawner interface {
	CreateTask(ctx context.Context, opts task.CreateTaskOptions) (task.CreateTaskResult, error)
}

// HistoryStore is the durable message log, per workspace.
type HistoryStore interface {
	Get(workspaceID string) (schema.Messages, error)
	Append(workspaceID string, msg schema.Message) error
}

// PartialStore holds the in-flight assistant turn, per workspace.
type PartialStore interface {
	Read(workspaceID string) (*schema.Message, error)
	Write(workspaceID string, msg schema.Message) error
	Clear(workspaceID string) error
}

// Service is the stream engine. One stream may be active per workspace.
type Service struct {
	provider schema.LLMProvider
	registry *tools.Registry
	history  HistoryStore
	partials PartialStore
	events   *bus.Bus

	maxTokens   int
	temperature float64
	maxIter     int

	spawner TaskSpawner

	mu     sync.Mutex
	active map[string]bool
}

// NewService builds the engine. maxIter bounds the tool-call loop of a
// single turn.
func NewService(
	provider schema.LLMProvider,
	registry *tools.Registry,
	history HistoryStore,
	partials PartialStore,
	events *bus.Bus,
	maxTokens int,
	temperature float64,
	maxIter int,
) *Service {
	return &Service{
		provider:    provider,
		registry:    registry,
		history:     history,
		partials:    partials,
		events:      events,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxIter:     maxIter,
		active:      make(map[string]bool),
	}
}

// SetTaskSpawner binds the task orchestrator. Until it is set, foreground
// task tool calls fail with an error output.
func (s *Service) SetTaskSpawner(sp TaskSpawner) { s.spawner = sp }

// IsStreaming reports whether a stream loop is currently running for the
// workspace. A paused turn (partial on disk, loop exited) is not streaming.
func (s *Service) IsStreaming(workspaceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[workspaceID]
}

// SendMessage appends the user prompt to the workspace history and starts a
// stream turn. Returns an error if a stream is already active. The turn runs
// detached; completion is signalled by a stream-end event on the bus.
func (s *Service) SendMessage(ctx context.Context, workspaceID, prompt string, opts schema.SendOptions) error {
	if prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if opts.Model == "" {
		opts.Model = s.provider.DefaultModel()
	}

	s.mu.Lock()
	if s.active[workspaceID] {
		s.mu.Unlock()
		return fmt.Errorf("workspace %s is already streaming", workspaceID)
	}
	s.active[workspaceID] = true
	s.mu.Unlock()

	msgs, err := s.history.Get(workspaceID)
	if err != nil {
		s.clearActive(workspaceID)
		return fmt.Errorf("read history: %w", err)
	}
	if len(msgs.Messages) == 0 && opts.System != "" {
		if err := s.appendAndEmit(workspaceID, schema.NewSystemMessage(opts.System)); err != nil {
			s.clearActive(workspaceID)
			return fmt.Errorf("seed system prompt: %w", err)
		}
	}
	if err := s.appendAndEmit(workspaceID, schema.NewUserMessage(prompt)); err != nil {
		s.clearActive(workspaceID)
		return fmt.Errorf("append prompt: %w", err)
	}

	go s.runLoop(workspaceID, opts)
	return nil
}

// ResumeStream continues a turn that paused on foreground task calls. The
// fulfilled partial is committed to history and the loop restarts from
// there. Returns an error if the partial still has unfulfilled calls.
func (s *Service) ResumeStream(ctx context.Context, workspaceID string, opts schema.SendOptions) error {
	if opts.Model == "" {
		opts.Model = s.provider.DefaultModel()
	}

	s.mu.Lock()
	if s.active[workspaceID] {
		s.mu.Unlock()
		return fmt.Errorf("workspace %s is already streaming", workspaceID)
	}
	s.active[workspaceID] = true
	s.mu.Unlock()

	partial, err := s.partials.Read(workspaceID)
	if err != nil {
		s.clearActive(workspaceID)
		return fmt.Errorf("read partial: %w", err)
	}
	if partial == nil {
		s.clearActive(workspaceID)
		return fmt.Errorf("workspace %s has no paused turn", workspaceID)
	}
	if pending := partial.PendingToolCalls(""); len(pending) > 0 {
		s.clearActive(workspaceID)
		return fmt.Errorf("workspace %s still has %d unfulfilled tool calls", workspaceID, len(pending))
	}

	if err := s.commitPartial(workspaceID, *partial); err != nil {
		s.clearActive(workspaceID)
		return err
	}

	go s.runLoop(workspaceID, opts)
	return nil
}

// runLoop is one stream turn: call the model, run tools, repeat until the
// model answers in plain text, the iteration budget runs out, or the turn
// pauses on a foreground task call. A paused turn leaves its partial on disk
// and emits no stream-end.
func (s *Service) runLoop(workspaceID string, opts schema.SendOptions) {
	var streamErr error
	paused := false
	defer func() {
		s.clearActive(workspaceID)
		if !paused {
			errStr := ""
			if streamErr != nil {
				errStr = streamErr.Error()
			}
			s.events.Publish(bus.StreamEnd{WorkspaceID: workspaceID, Error: errStr})
		}
	}()

	ctx := tools.WithWorkspaceID(context.Background(), workspaceID)
	defs := s.registry.Definitions(opts.Policy)

	for iter := 0; iter < s.maxIter; iter++ {
		msgs, err := s.history.Get(workspaceID)
		if err != nil {
			streamErr = fmt.Errorf("read history: %w", err)
			return
		}

		resp, err := s.provider.Chat(ctx, msgs, defs, schema.ChatOptions{
			Model:       opts.Model,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
			RequireTool: opts.Policy.Require,
		})
		if err != nil {
			streamErr = fmt.Errorf("provider chat: %w", err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			if err := s.appendAndEmit(workspaceID, schema.NewAssistantMessage(resp.Content, nil)); err != nil {
				streamErr = err
				return
			}
			if err := s.partials.Clear(workspaceID); err != nil {
				slog.Warn("clear partial", "workspace", workspaceID, "err", err)
			}
			return
		}

		partial := schema.NewAssistantMessage(resp.Content, nil)
		partial.Model = opts.Model
		partial.Thinking = opts.Thinking
		partial.Mode = opts.Mode
		for _, tc := range resp.ToolCalls {
			partial.ToolCalls = append(partial.ToolCalls, schema.ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
				State:     schema.ToolCallStateInput,
			})
		}
		if err := s.partials.Write(workspaceID, partial); err != nil {
			streamErr = fmt.Errorf("write partial: %w", err)
			return
		}

		for i := range partial.ToolCalls {
			tc := &partial.ToolCalls[i]
			if s.isForegroundTaskCall(*tc) {
				s.spawnForegroundTask(workspaceID, *tc, partial)
				paused = true
				continue
			}

			output := s.executeTool(ctx, opts.Policy, *tc)
			tc.State = schema.ToolCallStateOutput
			tc.Output = output
			if err := s.partials.Write(workspaceID, partial); err != nil {
				slog.Error("write partial", "workspace", workspaceID, "err", err)
			}
			s.events.Publish(bus.ToolCallEnd{
				WorkspaceID: workspaceID,
				ToolCallID:  tc.ID,
				ToolName:    tc.Name,
				Arguments:   tc.Arguments,
				Output:      output,
			})
		}

		if paused {
			// The foreground task's completion fulfills the remaining calls
			// and resumes this workspace.
			slog.Info("stream paused on foreground task", "workspace", workspaceID)
			return
		}

		if err := s.commitPartial(workspaceID, partial); err != nil {
			streamErr = err
			return
		}
	}

	streamErr = fmt.Errorf("tool iteration budget exhausted (%d)", s.maxIter)
}

func (s *Service) isForegroundTaskCall(tc schema.ToolCall) bool {
	if tc.Name != schema.ToolNameTask {
		return false
	}
	background, _ := tc.Arguments["run_in_background"].(bool)
	return !background
}

// spawnForegroundTask creates the subagent for a foreground task call. The
// call stays input-available in the partial; the orchestrator fulfills it
// and resumes this stream when the subagent reports or fails. Spawn-time
// validation errors are fed back into the call here, since no task exists
// to do it.
func (s *Service) spawnForegroundTask(workspaceID string, tc schema.ToolCall, partial schema.Message) {
	agentType, _ := tc.Arguments["agent_type"].(string)
	prompt, _ := tc.Arguments["prompt"].(string)
	description, _ := tc.Arguments["description"].(string)

	go func() {
		if s.spawner == nil {
			s.failForegroundCall(workspaceID, tc.ID, "task orchestrator not available", partial)
			return
		}
		res, err := s.spawner.CreateTask(context.Background(), task.CreateTaskOptions{
			ParentWorkspaceID: workspaceID,
			AgentType:         agentType,
			Prompt:            prompt,
			Description:       description,
			ParentToolCallID:  tc.ID,
		})
		if err != nil && res.TaskID == "" {
			// Validation failure: nothing was created, so nobody will ever
			// inject a result for this call.
			s.failForegroundCall(workspaceID, tc.ID, err.Error(), partial)
		}
	}()
}

// failForegroundCall fulfills a foreground task call with an error output
// and resumes the stream if nothing else is pending. Idempotent against the
// orchestrator's own injection.
func (s *Service) failForegroundCall(workspaceID, toolCallID, errMsg string, turnOpts schema.Message) {
	partial, err := s.partials.Read(workspaceID)
	if err != nil || partial == nil {
		return
	}
	tc := partial.FindToolCall(toolCallID, schema.ToolNameTask)
	if tc == nil || !tc.Pending() {
		return
	}
	out, _ := json.Marshal(map[string]any{"status": "failed", "error": errMsg})
	tc.State = schema.ToolCallStateOutput
	tc.Output = string(out)
	if err := s.partials.Write(workspaceID, *partial); err != nil {
		slog.Error("write partial", "workspace", workspaceID, "err", err)
		return
	}
	s.events.Publish(bus.ToolCallEnd{
		WorkspaceID: workspaceID,
		ToolCallID:  toolCallID,
		ToolName:    schema.ToolNameTask,
		Output:      string(out),
		Synthetic:   true,
	})

	if len(partial.PendingToolCalls("")) == 0 {
		opts := schema.SendOptions{Model: turnOpts.Model, Thinking: turnOpts.Thinking, Mode: turnOpts.Mode}
		if err := s.ResumeStream(context.Background(), workspaceID, opts); err != nil {
			slog.Error("resume after spawn failure", "workspace", workspaceID, "err", err)
		}
	}
}

// executeTool runs one tool call and returns its output string. Tool-level
// problems come back as "Error: ..." outputs for the model to react to, not
// as stream failures.
func (s *Service) executeTool(ctx context.Context, policy schema.ToolPolicy, tc schema.ToolCall) string {
	if !policy.Permits(tc.Name) {
		return fmt.Sprintf("Error: tool %q is not permitted in this turn", tc.Name)
	}
	tool := s.registry.Get(tc.Name)
	if tool == nil {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}
	output, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}

// commitPartial moves a fully-fulfilled partial turn into durable history:
// the assistant message with its tool calls, then one tool-result message
// per call. The partial is cleared afterwards.
func (s *Service) commitPartial(workspaceID string, partial schema.Message) error {
	if err := s.appendAndEmit(workspaceID, partial); err != nil {
		return fmt.Errorf("commit assistant turn: %w", err)
	}
	for _, tc := range partial.ToolCalls {
		result, ok := tc.Output.(string)
		if !ok {
			raw, _ := json.Marshal(tc.Output)
			result = string(raw)
		}
		if err := s.appendAndEmit(workspaceID, schema.NewToolResultMessage(tc.ID, tc.Name, result)); err != nil {
			return fmt.Errorf("commit tool result: %w", err)
		}
	}
	if err := s.partials.Clear(workspaceID); err != nil {
		slog.Warn("clear partial", "workspace", workspaceID, "err", err)
	}
	return nil
}

func (s *Service) appendAndEmit(workspaceID string, msg schema.Message) error {
	if err := s.history.Append(workspaceID, msg); err != nil {
		return err
	}
	s.events.Publish(bus.MessageAppended{WorkspaceID: workspaceID, Message: msg})
	return nil
}

func (s *Service) clearActive(workspaceID string) {
	s.mu.Lock()
	delete(s.active, workspaceID)
	s.mu.Unlock()
}
