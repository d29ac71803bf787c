package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyToolName = errors.New("tool name cannot be empty")
	ErrEmptyToolID   = errors.New("tool invocation ID cannot be empty")
)

// ToolInvocation is the audited record of one sandboxed tool execution:
// the raw code the model supplied, what the sanitizer removed, and the
// capability-bound execution outcome. Immutable once recorded.
type ToolInvocation struct {
	ToolID         string        `json:"tool_id"`
	ToolName       string        `json:"tool_name"`
	RawCode        string        `json:"raw_code,omitempty"`
	SanitizedCode  string        `json:"sanitized_code,omitempty"`
	RemovedImports []string      `json:"removed_imports,omitempty"`
	Value          string        `json:"value,omitempty"`
	Output         string        `json:"output,omitempty"`
	ErrorDetail    string        `json:"error,omitempty"`
	TimedOut       bool          `json:"timed_out,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	StartedAt      time.Time     `json:"started_at"`
}

// NewToolInvocation creates the invariant part of an invocation record.
// Outcome fields are filled by the executor before the record is appended
// to the conversation.
func NewToolInvocation(toolID, toolName, rawCode string) (*ToolInvocation, error) {
	if strings.TrimSpace(toolID) == "" {
		return nil, ErrEmptyToolID
	}
	if strings.TrimSpace(toolName) == "" {
		return nil, ErrEmptyToolName
	}
	return &ToolInvocation{
		ToolID:    toolID,
		ToolName:  toolName,
		RawCode:   rawCode,
		StartedAt: time.Now(),
	}, nil
}

// Succeeded returns true if execution produced no error.
func (ti *ToolInvocation) Succeeded() bool { return ti.ErrorDetail == "" }

// ResultContent renders the invocation outcome as the JSON document fed back
// to the model. The shape mirrors the executor wire contract: success flag,
// captured output, computed value, error detail, and execution time.
func (ti *ToolInvocation) ResultContent() string {
	payload := map[string]any{
		"success":        ti.Succeeded(),
		"output":         ti.Output,
		"execution_time": ti.Duration.Seconds(),
	}
	if ti.Value != "" {
		payload["result"] = ti.Value
	}
	if ti.ErrorDetail != "" {
		payload["error"] = ti.ErrorDetail
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(data)
}
