package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var (
	ErrEmptyRole       = errors.New("role cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrInvalidRole     = errors.New("invalid role")
	ErrZeroTimestamp   = errors.New("timestamp cannot be zero")
	ErrInvalidContent  = errors.New("content cannot be whitespace only")
	ErrNoToolResults   = errors.New("tool result message requires at least one result")
	ErrEmptyToolCallID = errors.New("tool call ID cannot be empty")
)

// ToolCall is a model-issued request to invoke a named capability.
// Input holds the decoded arguments; InputJSON preserves the raw wire form.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input,omitempty"`
	InputJSON string         `json:"input_json,omitempty"`
}

// ToolResult carries the outcome of one tool call back to the model.
type ToolResult struct {
	ToolID  string `json:"tool_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Message represents a single turn in the investigation transcript.
// It is immutable once recorded into a Conversation.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// NewMessage creates a plain text message with the given role and content.
// The timestamp is automatically set to the current time.
func NewMessage(role, content string) (*Message, error) {
	if err := validateRole(role); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, ErrEmptyContent
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrInvalidContent
	}

	return &Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}, nil
}

// NewAssistantMessage creates an assistant turn that may carry tool calls
// alongside optional text content. An assistant turn with tool calls and no
// text is valid; a turn with neither is not.
func NewAssistantMessage(content string, toolCalls []ToolCall) (*Message, error) {
	if content == "" && len(toolCalls) == 0 {
		return nil, ErrEmptyContent
	}
	for _, tc := range toolCalls {
		if tc.ID == "" {
			return nil, ErrEmptyToolCallID
		}
	}

	return &Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		ToolCalls: toolCalls,
	}, nil
}

// NewToolResultMessage creates the user turn that feeds tool results back to
// the model. Results are kept in the order given, which must match the order
// the model requested them in.
func NewToolResultMessage(results []ToolResult) (*Message, error) {
	if len(results) == 0 {
		return nil, ErrNoToolResults
	}
	for _, tr := range results {
		if tr.ToolID == "" {
			return nil, ErrEmptyToolCallID
		}
	}

	return &Message{
		Role:        RoleUser,
		Timestamp:   time.Now(),
		ToolResults: results,
	}, nil
}

// IsUser returns true if the message is from a user.
func (m *Message) IsUser() bool { return m.Role == RoleUser }

// IsAssistant returns true if the message is from the model.
func (m *Message) IsAssistant() bool { return m.Role == RoleAssistant }

// HasToolCalls returns true if the message requests tool invocations.
func (m *Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// HasToolResults returns true if the message carries tool results.
func (m *Message) HasToolResults() bool { return len(m.ToolResults) > 0 }

// Validate checks structural validity of the message.
func (m *Message) Validate() error {
	if err := validateRole(m.Role); err != nil {
		return err
	}
	if m.Content == "" && len(m.ToolCalls) == 0 && len(m.ToolResults) == 0 {
		return ErrEmptyContent
	}
	if m.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// String returns a short representation for logging.
func (m *Message) String() string {
	if m.HasToolCalls() {
		return fmt.Sprintf("Message[%s]: %d tool call(s)", m.Role, len(m.ToolCalls))
	}
	if m.HasToolResults() {
		return fmt.Sprintf("Message[%s]: %d tool result(s)", m.Role, len(m.ToolResults))
	}
	return fmt.Sprintf("Message[%s]: %s", m.Role, m.Content)
}

func validateRole(role string) error {
	if role == "" {
		return ErrEmptyRole
	}
	if role != RoleUser && role != RoleAssistant && role != RoleSystem {
		return ErrInvalidRole
	}
	return nil
}
