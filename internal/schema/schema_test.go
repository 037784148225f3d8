package schema

import "testing"

func TestToolPolicyPermits(t *testing.T) {
	cases := []struct {
		name   string
		policy ToolPolicy
		tool   string
		want   bool
	}{
		{"empty allows all", ToolPolicy{}, "exec", true},
		{"allowed listed", ToolPolicy{Allowed: []string{"exec", "read_file"}}, "exec", true},
		{"allowed unlisted", ToolPolicy{Allowed: []string{"exec"}}, "write_file", false},
		{"require matches", ToolPolicy{Require: ToolNameAgentReport}, ToolNameAgentReport, true},
		{"require excludes others", ToolPolicy{Require: ToolNameAgentReport}, "exec", false},
		{"require overrides allowed", ToolPolicy{Allowed: []string{"exec"}, Require: ToolNameAgentReport}, "exec", false},
	}
	for _, c := range cases {
		if got := c.policy.Permits(c.tool); got != c.want {
			t.Errorf("%s: Permits(%q) = %v, want %v", c.name, c.tool, got, c.want)
		}
	}
}

func TestPendingToolCalls(t *testing.T) {
	m := NewAssistantMessage("", []ToolCall{
		{ID: "a", Name: ToolNameTask, State: ToolCallStateInput},
		{ID: "b", Name: ToolNameTask, State: ToolCallStateOutput, Output: "done"},
		{ID: "c", Name: "exec", State: ToolCallStateInput},
	})

	if got := m.PendingToolCalls(ToolNameTask); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("PendingToolCalls(task) = %+v", got)
	}
	if got := m.PendingToolCalls(""); len(got) != 2 {
		t.Errorf("PendingToolCalls(all) = %d entries, want 2", len(got))
	}
}

func TestFindToolCallReturnsMutablePointer(t *testing.T) {
	m := NewAssistantMessage("", []ToolCall{{ID: "a", Name: ToolNameTask, State: ToolCallStateInput}})
	tc := m.FindToolCall("a", ToolNameTask)
	if tc == nil {
		t.Fatal("FindToolCall returned nil")
	}
	tc.State = ToolCallStateOutput
	if m.ToolCalls[0].State != ToolCallStateOutput {
		t.Fatal("mutation through pointer not visible on message")
	}
	if m.FindToolCall("a", "exec") != nil {
		t.Error("name mismatch matched")
	}
}

func TestLastAssistantText(t *testing.T) {
	msgs := NewMessages(
		NewAssistantMessage("first", nil),
		NewUserMessage("prompt"),
		NewAssistantMessage("", []ToolCall{{ID: "x"}}),
		NewAssistantMessage("latest findings", nil),
		NewToolResultMessage("x", "exec", "out"),
	)
	if got := msgs.LastAssistantText(); got != "latest findings" {
		t.Fatalf("LastAssistantText = %q", got)
	}

	empty := NewMessages(NewUserMessage("only user"))
	if got := empty.LastAssistantText(); got != "" {
		t.Fatalf("LastAssistantText on no assistant = %q", got)
	}
}

func TestTaskStatusPredicates(t *testing.T) {
	for _, s := range []TaskStatus{TaskQueued, TaskRunning, TaskAwaitingReport} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
		if !s.Active() {
			t.Errorf("%s.Active() = false", s)
		}
	}
	for _, s := range []TaskStatus{TaskReported, TaskFailed} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
		if s.Active() {
			t.Errorf("%s.Active() = true", s)
		}
	}
}

func TestTaskSettingsClamped(t *testing.T) {
	got := TaskSettings{}.Clamped()
	if got != DefaultTaskSettings() {
		t.Errorf("zero settings clamp to %+v, want defaults", got)
	}
	got = TaskSettings{MaxParallelAgentTasks: 50, MaxTaskNestingDepth: 50}.Clamped()
	if got.MaxParallelAgentTasks != 10 || got.MaxTaskNestingDepth != 5 {
		t.Errorf("over-range clamp = %+v", got)
	}
	got = TaskSettings{MaxParallelAgentTasks: -1, MaxTaskNestingDepth: -1}.Clamped()
	if got.MaxParallelAgentTasks != 1 || got.MaxTaskNestingDepth != 1 {
		t.Errorf("under-range clamp = %+v", got)
	}
}
