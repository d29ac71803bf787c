// Package usecase contains application use cases.
package usecase

import (
	"errors"
	"fmt"
	"time"

	"alarm-triage-agent/internal/domain/entity"
)

// ErrNilAlarm is returned when prompt building is attempted without an alarm.
var ErrNilAlarm = errors.New("alarm event cannot be nil")

// ScriptToolName is the single tool declared to the model. Every data-
// gathering step the model takes goes through it.
const ScriptToolName = "investigation_script"

// PromptBuilder renders the system prompt for an alarm investigation.
// The prompt carries the full alarm context and the investigation
// methodology; the conversation itself starts with a minimal trigger
// message so the transcript stays readable.
type PromptBuilder struct {
	now func() time.Time
}

// NewPromptBuilder creates a PromptBuilder using the wall clock.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{now: time.Now}
}

// BuildSystemPrompt renders the investigation instructions for the alarm.
// Returns ErrNilAlarm if alarm is nil.
func (b *PromptBuilder) BuildSystemPrompt(alarm *entity.AlarmEvent) (string, error) {
	if alarm == nil {
		return "", ErrNilAlarm
	}

	return fmt.Sprintf(`You are an expert site reliability engineer investigating a monitoring alarm. An alarm has fired and requires investigation.

## ALARM CONTEXT
- Current Time: %s
- Event Details:
%s

## INVESTIGATION REQUIREMENTS

Perform a thorough investigation:

1. Initial Assessment
   - Identify the alarming resource and metric
   - Understand the threshold and breach conditions
2. Data Gathering
   - Retrieve logs for the affected resource (last 30-60 minutes)
   - Get metrics for trend analysis (last 2-6 hours)
   - Check resource configurations and current state
   - Check for related alarms or cascading failures
3. Root Cause Analysis
   - Identify the specific condition that triggered the alarm
   - Determine the underlying root cause based on actual data
4. Impact Assessment
   - Identify affected services and users, and quantify impact
5. Remediation Steps
   - Identify immediate actions and preventive measures

## OUTPUT FORMAT

Structure your final response EXACTLY as follows:

### EXECUTIVE SUMMARY
[2-3 sentences: what happened, impact, and required action]

### INVESTIGATION DETAILS
[Key queries you ran and what they showed]

### ROOT CAUSE ANALYSIS
[Why this alarm triggered, based on your investigation]

### IMPACT ASSESSMENT
[Affected resources, severity level, users affected]

### IMMEDIATE ACTIONS
[Specific, actionable remediation steps]

### PREVENTION MEASURES
[Long-term fixes and monitoring improvements]

## IMPORTANT REMINDERS

- Base all findings on actual data from your queries. Do not speculate
- Be specific with resource names, error messages, and metrics
- Time-box queries appropriately (last 30 minutes for logs, 2 hours for metrics)
- Handle errors gracefully. If a query fails, try alternatives
- This is a production incident requiring immediate attention

## TOOL ACCESS NOTES

Use the %s tool to gather data. The execution environment pre-binds
query_logs, query_metrics, describe_resource, and the json module; do not
write import or load statements, they are stripped before execution. Assign
your findings to a variable named result; its value is returned to you along
with anything you print.

Use the %s tool extensively to investigate thoroughly before providing your analysis.`,
		b.now().UTC().Format(time.RFC3339),
		alarm.ContextJSON(),
		ScriptToolName,
		ScriptToolName,
	), nil
}

// BuildTriggerMessage renders the minimal user message that starts the
// conversation. The system prompt already carries the full context.
func (b *PromptBuilder) BuildTriggerMessage(alarm *entity.AlarmEvent) (string, error) {
	if alarm == nil {
		return "", ErrNilAlarm
	}
	return fmt.Sprintf("Alarm: %s\nState: %s\nInvestigate this alarm now.", alarm.Identity(), alarm.State()), nil
}
