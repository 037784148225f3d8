package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muxworks/mux/internal/schema"
)

func TestChatSendsWireRequestAndParsesToolCalls(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth = %q", got)
		}
		if got := r.Header.Get("X-Extra"); got != "yes" {
			t.Errorf("extra header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
			{"id":"c1","function":{"name":"agent_report","arguments":"{\"report_markdown\":\"done\"}"}}
		]}}]}`))
	}))
	defer srv.Close()

	p := New(Params{
		APIKey:       "secret",
		APIBase:      srv.URL,
		DefaultModel: "anthropic/claude-sonnet-4-5",
		ExtraHeaders: map[string]string{"X-Extra": "yes"},
	})

	msgs := schema.NewMessages(schema.NewUserMessage("report please"))
	resp, err := p.Chat(context.Background(), msgs,
		[]map[string]any{{"type": "function"}},
		schema.ChatOptions{RequireTool: "agent_report"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	// Routing prefix stripped before the wire.
	if captured["model"] != "claude-sonnet-4-5" {
		t.Errorf("wire model = %v", captured["model"])
	}
	choice, ok := captured["tool_choice"].(map[string]any)
	if !ok {
		t.Fatalf("tool_choice = %v, want forced function", captured["tool_choice"])
	}
	fn := choice["function"].(map[string]any)
	if fn["name"] != "agent_report" {
		t.Errorf("forced tool = %v", fn["name"])
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "agent_report" || tc.Arguments["report_markdown"] != "done" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestChatSurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := New(Params{APIBase: srv.URL, DefaultModel: "m"})
	_, err := p.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want HTTP 429", err)
	}
}

func TestParseResponseErrorBody(t *testing.T) {
	_, err := parseResponse([]byte(`{"error":{"message":"bad key"}}`))
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("err = %v", err)
	}
	_, err = parseResponse([]byte(`{"choices":[]}`))
	if err == nil {
		t.Fatal("empty choices accepted")
	}
}

func TestWireMessagesCarriesToolPlumbing(t *testing.T) {
	msgs := schema.NewMessages(
		schema.NewAssistantMessage("", []schema.ToolCall{{
			ID: "c1", Name: "exec", Arguments: map[string]any{"command": "ls"},
		}}),
		schema.NewToolResultMessage("c1", "exec", "files"),
	)
	wire := wireMessages(msgs)
	if len(wire) != 2 {
		t.Fatalf("wire len = %d", len(wire))
	}
	if _, ok := wire[0]["tool_calls"]; !ok {
		t.Error("assistant wire message lacks tool_calls")
	}
	if wire[1]["tool_call_id"] != "c1" {
		t.Errorf("tool result wire = %+v", wire[1])
	}
}
