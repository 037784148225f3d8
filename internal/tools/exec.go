package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// denyPatterns blocks commands with no legitimate use inside a workspace.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-[rf]{1,2}\s+/\s*$`),      // rm -rf /
	regexp.MustCompile(`(?i)(?:^|[;&|]\s*)format\b`),         // format (standalone)
	regexp.MustCompile(`(?i)\b(mkfs|diskpart)\b`),            // disk ops
	regexp.MustCompile(`(?i)\bdd\s+if=`),                     // dd
	regexp.MustCompile(`(?i)>\s*/dev/sd`),                    // write to disk
	regexp.MustCompile(`(?i)\b(shutdown|reboot|poweroff)\b`), // power control
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),                // fork bomb
}

// ExecTool executes shell commands inside the workspace directory.
type ExecTool struct {
	workingDir string
	timeout    time.Duration
}

// NewExecTool creates an ExecTool rooted at workingDir.
// timeoutSeconds <= 0 selects the 60 second default.
func NewExecTool(workingDir string, timeoutSeconds int) *ExecTool {
	t := 60
	if timeoutSeconds > 0 {
		t = timeoutSeconds
	}
	return &ExecTool{workingDir: workingDir, timeout: time.Duration(t) * time.Second}
}

func (e *ExecTool) Name() string { return ToolExec }
func (e *ExecTool) Description() string {
	return "Execute a shell command in the workspace and return its output."
}
func (e *ExecTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to execute"
			}
		},
		"required": ["command"]
	}`)
}

func (e *ExecTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return "Error: command is required", nil
	}
	for _, re := range denyPatterns {
		if re.MatchString(command) {
			return "Error: command blocked by safety policy", nil
		}
	}

	cwd := e.workingDir
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = cwd

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	result := strings.TrimSpace(out.String())
	if cmdCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: command timed out after %s", e.timeout), nil
	}
	if err != nil {
		if result == "" {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("%s\n(exit error: %v)", result, err), nil
	}
	if result == "" {
		return "(no output)", nil
	}
	return result, nil
}
