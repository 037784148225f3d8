package ai

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/schema"
	"github.com/muxworks/mux/internal/task"
	"github.com/muxworks/mux/internal/tools"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []schema.LLMResponse
	calls     int
}

func (p *scriptedProvider) Chat(_ context.Context, _ schema.Messages, _ []map[string]any, _ schema.ChatOptions) (schema.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.responses) {
		return schema.LLMResponse{Content: "out of script"}, nil
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test/model-1" }

type memHistory struct {
	mu   sync.Mutex
	logs map[string][]schema.Message
}

func (m *memHistory) Get(id string) (schema.Messages, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return schema.NewMessages(m.logs[id]...), nil
}

func (m *memHistory) Append(id string, msg schema.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[id] = append(m.logs[id], msg)
	return nil
}

func (m *memHistory) all(id string) []schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Message(nil), m.logs[id]...)
}

type memPartials struct {
	mu   sync.Mutex
	data map[string]*schema.Message
}

func (m *memPartials) Read(id string) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPartials) Write(id string, msg schema.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = &msg
	return nil
}

func (m *memPartials) Clear(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

// echoTool records its invocations.
type echoTool struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (e *echoTool) Name() string                 { return "echo" }
func (e *echoTool) Description() string          { return "echo the input" }
func (e *echoTool) Parameters() json.RawMessage  { return json.RawMessage(`{"type":"object"}`) }
func (e *echoTool) Execute(_ context.Context, params map[string]any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, params)
	text, _ := params["text"].(string)
	return "echo: " + text, nil
}

type recordingSpawner struct {
	mu    sync.Mutex
	calls []task.CreateTaskOptions
}

func (r *recordingSpawner) CreateTask(_ context.Context, opts task.CreateTaskOptions) (task.CreateTaskResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, opts)
	return task.CreateTaskResult{TaskID: "t-1", Status: schema.TaskRunning}, nil
}

// ---------------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------------

type aiEnv struct {
	provider *scriptedProvider
	hist     *memHistory
	parts    *memPartials
	echo     *echoTool
	bus      *bus.Bus
	streamEd chan bus.StreamEnd
}

func newTestEngine(t *testing.T, responses ...schema.LLMResponse) (*Service, *aiEnv) {
	t.Helper()
	e := &aiEnv{
		provider: &scriptedProvider{responses: responses},
		hist:     &memHistory{logs: map[string][]schema.Message{}},
		parts:    &memPartials{data: map[string]*schema.Message{}},
		echo:     &echoTool{},
		bus:      bus.New(),
		streamEd: make(chan bus.StreamEnd, 8),
	}
	reg := tools.NewRegistryBuilder().WithTool(e.echo).Build()
	s := NewService(e.provider, reg, e.hist, e.parts, e.bus, 1024, 0.5, 10)

	ch, cancel := e.bus.Subscribe(32)
	t.Cleanup(cancel)
	go func() {
		for ev := range ch {
			if se, ok := ev.(bus.StreamEnd); ok {
				e.streamEd <- se
			}
		}
	}()
	return s, e
}

func waitStreamEnd(t *testing.T, e *aiEnv) bus.StreamEnd {
	t.Helper()
	select {
	case se := <-e.streamEd:
		return se
	case <-time.After(3 * time.Second):
		t.Fatal("no stream-end event")
		return bus.StreamEnd{}
	}
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestSendMessageTextOnlyTurn(t *testing.T) {
	s, e := newTestEngine(t, schema.LLMResponse{Content: "plain answer"})

	err := s.SendMessage(context.Background(), "ws", "question", schema.SendOptions{System: "be brief"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	se := waitStreamEnd(t, e)
	if se.Error != "" {
		t.Fatalf("stream error: %s", se.Error)
	}

	msgs := e.hist.all("ws")
	if len(msgs) != 3 {
		t.Fatalf("history has %d messages, want 3 (system, user, assistant)", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be brief" {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "plain answer" {
		t.Errorf("assistant message = %+v", msgs[2])
	}
	if s.IsStreaming("ws") {
		t.Error("still streaming after turn end")
	}
}

func TestSendMessageRejectsConcurrentStream(t *testing.T) {
	s, e := newTestEngine(t, schema.LLMResponse{Content: "one"}, schema.LLMResponse{Content: "two"})

	s.mu.Lock()
	s.active["ws"] = true
	s.mu.Unlock()

	if err := s.SendMessage(context.Background(), "ws", "again", schema.SendOptions{}); err == nil {
		t.Fatal("second SendMessage succeeded while streaming")
	}
	s.mu.Lock()
	delete(s.active, "ws")
	s.mu.Unlock()
	_ = e
}

func TestToolCallTurnExecutesAndCommits(t *testing.T) {
	s, e := newTestEngine(t,
		schema.LLMResponse{ToolCalls: []schema.ToolCallResponse{{
			ID: "c1", Name: "echo", Arguments: map[string]any{"text": "hi"},
		}}},
		schema.LLMResponse{Content: "done"},
	)

	if err := s.SendMessage(context.Background(), "ws", "use echo", schema.SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	se := waitStreamEnd(t, e)
	if se.Error != "" {
		t.Fatalf("stream error: %s", se.Error)
	}

	msgs := e.hist.all("ws")
	// user, assistant(tool call), tool result, assistant(final)
	if len(msgs) != 4 {
		t.Fatalf("history has %d messages, want 4", len(msgs))
	}
	if tc := msgs[1].FindToolCall("c1", "echo"); tc == nil || tc.Pending() {
		t.Fatalf("tool call not committed fulfilled: %+v", msgs[1])
	}
	if msgs[2].Role != "tool" || msgs[2].Content != "echo: hi" {
		t.Errorf("tool result = %+v", msgs[2])
	}
	if p, _ := e.parts.Read("ws"); p != nil {
		t.Error("partial not cleared after commit")
	}
}

func TestDisallowedToolGetsErrorOutput(t *testing.T) {
	s, e := newTestEngine(t,
		schema.LLMResponse{ToolCalls: []schema.ToolCallResponse{{
			ID: "c1", Name: "echo", Arguments: map[string]any{},
		}}},
		schema.LLMResponse{Content: "ok"},
	)

	err := s.SendMessage(context.Background(), "ws", "go", schema.SendOptions{
		Policy: schema.ToolPolicy{Allowed: []string{"other"}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	waitStreamEnd(t, e)

	msgs := e.hist.all("ws")
	if len(msgs) < 3 {
		t.Fatalf("history has %d messages", len(msgs))
	}
	if !strings.Contains(msgs[2].Content, "not permitted") {
		t.Errorf("tool result = %q, want not-permitted error", msgs[2].Content)
	}
	if len(e.echo.calls) != 0 {
		t.Error("disallowed tool was executed")
	}
}

func TestForegroundTaskCallPausesStream(t *testing.T) {
	s, e := newTestEngine(t,
		schema.LLMResponse{ToolCalls: []schema.ToolCallResponse{{
			ID:   "c1",
			Name: schema.ToolNameTask,
			Arguments: map[string]any{
				"agent_type": "explore",
				"prompt":     "dig in",
			},
		}}},
	)
	spawner := &recordingSpawner{}
	s.SetTaskSpawner(spawner)

	if err := s.SendMessage(context.Background(), "ws", "delegate", schema.SendOptions{Model: "m"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// Wait for the pause: loop exited, partial retained, spawner called.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		spawner.mu.Lock()
		n := len(spawner.calls)
		spawner.mu.Unlock()
		if n == 1 && !s.IsStreaming("ws") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	spawner.mu.Lock()
	defer spawner.mu.Unlock()
	if len(spawner.calls) != 1 {
		t.Fatalf("spawner called %d times, want 1", len(spawner.calls))
	}
	call := spawner.calls[0]
	if call.ParentWorkspaceID != "ws" || call.ParentToolCallID != "c1" || call.RunInBackground {
		t.Errorf("spawn opts = %+v", call)
	}

	p, _ := e.parts.Read("ws")
	if p == nil {
		t.Fatal("partial cleared on pause")
	}
	if tc := p.FindToolCall("c1", schema.ToolNameTask); tc == nil || !tc.Pending() {
		t.Fatalf("task call not left pending: %+v", tc)
	}
	select {
	case se := <-e.streamEd:
		t.Fatalf("paused stream emitted stream-end: %+v", se)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResumeStreamCommitsFulfilledPartial(t *testing.T) {
	s, e := newTestEngine(t, schema.LLMResponse{Content: "continuation"})

	partial := schema.NewAssistantMessage("", []schema.ToolCall{{
		ID:     "c1",
		Name:   schema.ToolNameTask,
		State:  schema.ToolCallStateOutput,
		Output: `{"status":"completed"}`,
	}})
	partial.Model = "test/model-1"
	if err := e.parts.Write("ws", partial); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := s.ResumeStream(context.Background(), "ws", schema.SendOptions{Model: "test/model-1"}); err != nil {
		t.Fatalf("ResumeStream: %v", err)
	}
	se := waitStreamEnd(t, e)
	if se.Error != "" {
		t.Fatalf("stream error: %s", se.Error)
	}

	msgs := e.hist.all("ws")
	// assistant(task call), tool result, assistant(continuation)
	if len(msgs) != 3 {
		t.Fatalf("history has %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != "tool" || msgs[1].ToolCallID != "c1" {
		t.Errorf("tool result = %+v", msgs[1])
	}
	if msgs[2].Content != "continuation" {
		t.Errorf("final = %+v", msgs[2])
	}
}

func TestResumeStreamRejectsPendingCalls(t *testing.T) {
	s, e := newTestEngine(t)

	partial := schema.NewAssistantMessage("", []schema.ToolCall{{
		ID: "c1", Name: schema.ToolNameTask, State: schema.ToolCallStateInput,
	}})
	if err := e.parts.Write("ws", partial); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := s.ResumeStream(context.Background(), "ws", schema.SendOptions{}); err == nil {
		t.Fatal("resume with pending calls succeeded")
	}
	if err := s.ResumeStream(context.Background(), "empty", schema.SendOptions{}); err == nil {
		t.Fatal("resume with no partial succeeded")
	}
}
