package tools

import (
	"context"
	"encoding/json"
)

// AgentReportTool is how a subagent delivers its final result. The tool
// itself only acknowledges the call; the task orchestrator observes the
// tool-call-end event on the bus and performs the completion.
type AgentReportTool struct{}

func NewAgentReportTool() *AgentReportTool { return &AgentReportTool{} }

func (t *AgentReportTool) Name() string { return ToolAgentReport }

func (t *AgentReportTool) Description() string {
	return "Deliver your final report. Call this exactly once, when your assigned " +
		"task is complete. report_markdown should contain everything the requester " +
		"needs; nothing else from this conversation is forwarded."
}

func (t *AgentReportTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "report_markdown": {"type": "string", "description": "The full report, in markdown."},
    "title": {"type": "string", "description": "One-line summary of the report."}
  },
  "required": ["report_markdown"]
}`)
}

func (t *AgentReportTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	markdown, _ := params["report_markdown"].(string)
	if markdown == "" {
		return "Error: report_markdown must not be empty. Call agent_report again with your full report.", nil
	}
	return "Report received.", nil
}
