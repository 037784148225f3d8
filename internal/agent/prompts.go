package agent

// ReportReminder is sent to a task whose stream ended without calling
// agent_report. The accompanying tool policy requires agent_report, so the
// model cannot answer with anything else.
const ReportReminder = "Your turn ended without a report. Call the agent_report tool now " +
	"with a markdown summary of everything you found or did. Do not do any further work."

// ContinueNudge is sent to tasks that were mid-run when the process
// restarted.
const ContinueNudge = "The host process restarted while you were working. Continue the " +
	"assigned task from where you left off, and call the agent_report tool when finished."

// FallbackReportPlaceholder is used when a task ends without a report and no
// assistant text could be extracted from its history.
const FallbackReportPlaceholder = "The task ended without producing a report, and no " +
	"assistant text could be extracted from its conversation."
