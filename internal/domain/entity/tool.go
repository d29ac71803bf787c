package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName        = errors.New("tool name cannot be empty")
	ErrEmptyDescription = errors.New("tool description cannot be empty")
	ErrNilSchema        = errors.New("input schema cannot be nil")
	ErrEmptySchema      = errors.New("input schema cannot be empty")
	ErrInvalidInput     = errors.New("invalid input JSON")
)

// Tool is a callable schema declared to the model: a name, a description,
// and the JSON shape of its arguments. The set of tools is closed at startup;
// the model may only name members of this set.
type Tool struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	InputSchema    map[string]any `json:"input_schema,omitempty"`
	RequiredFields []string       `json:"required_fields,omitempty"`
}

// NewTool creates a tool declaration with the given name and description.
func NewTool(name, description string) (*Tool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	return &Tool{Name: name, Description: description}, nil
}

// AddInputSchema sets the input schema and required field names.
// The required slice is copied defensively.
func (t *Tool) AddInputSchema(schema map[string]any, required []string) error {
	if schema == nil {
		return ErrNilSchema
	}
	if len(schema) == 0 {
		return ErrEmptySchema
	}
	t.InputSchema = schema
	if required != nil {
		t.RequiredFields = make([]string, len(required))
		copy(t.RequiredFields, required)
	}
	return nil
}

// ValidateInput checks raw JSON arguments against the required fields.
func (t *Tool) ValidateInput(input json.RawMessage) error {
	if len(input) == 0 {
		return ErrInvalidInput
	}
	var decoded map[string]any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return ErrInvalidInput
	}
	for _, req := range t.RequiredFields {
		if _, ok := decoded[req]; !ok {
			return errors.New("missing required field: " + req)
		}
	}
	return nil
}

// String returns a string representation of the tool.
func (t *Tool) String() string {
	return fmt.Sprintf("Tool[%s]", t.Name)
}
