// Package ai provides the Anthropic model adapter behind the domain
// ModelProvider port, plus the retry decorator that wraps it.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/domain/port"
)

var (
	// ErrEmptyMessages is returned when SendMessage is called with no messages.
	ErrEmptyMessages = errors.New("messages cannot be empty")

	// ErrModelNotSet is returned when a request is made without setting a model.
	ErrModelNotSet = errors.New("model must be set before sending messages")
)

const defaultMaxTokens = 4096

// AnthropicAdapter implements the ModelProvider port using Anthropic's API.
// It converts domain conversation turns to SDK wire types and the response
// back into a domain assistant message carrying any tool calls.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicAdapter creates an adapter for the given model. The API key is
// read from the environment by the SDK client.
func NewAnthropicAdapter(model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// SetModel sets the model used for subsequent requests.
func (a *AnthropicAdapter) SetModel(model string) error {
	if model == "" {
		return ErrModelNotSet
	}
	a.model = model
	return nil
}

// GetModel returns the currently configured model.
func (a *AnthropicAdapter) GetModel() string { return a.model }

// SendMessage sends the conversation to the API and returns the assistant
// reply. Tool use blocks in the response become ToolCalls on the returned
// message, preserving the order the model issued them in.
func (a *AnthropicAdapter) SendMessage(
	ctx context.Context,
	system string,
	messages []entity.Message,
	tools []entity.Tool,
) (*entity.Message, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}
	if a.model == "" {
		return nil, ErrModelNotSet
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  convertMessages(messages),
		Tools:     convertTools(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	response, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	return convertResponse(response)
}

// convertMessages converts domain conversation turns to SDK message params.
// Tool result turns become tool_result blocks on a user message; assistant
// turns with tool calls become tool_use blocks.
func convertMessages(messages []entity.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, len(messages))
	for i, msg := range messages {
		switch {
		case msg.HasToolResults():
			blocks := make([]anthropic.ContentBlockParamUnion, len(msg.ToolResults))
			for j, tr := range msg.ToolResults {
				blocks[j] = anthropic.NewToolResultBlock(tr.ToolID, tr.Content, tr.IsError)
			}
			result[i] = anthropic.NewUserMessage(blocks...)
		case msg.IsAssistant() && msg.HasToolCalls():
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			result[i] = anthropic.NewAssistantMessage(blocks...)
		case msg.IsAssistant():
			result[i] = anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content))
		default:
			result[i] = anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
		}
	}
	return result
}

// convertTools converts domain tool declarations to SDK tool params.
func convertTools(tools []entity.Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		properties := map[string]any{}
		for key, val := range tool.InputSchema {
			properties[key] = val
		}
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   tool.RequiredFields,
				},
			},
		}
	}
	return result
}

// convertResponse flattens the response content blocks into one assistant
// message: text blocks are concatenated, tool_use blocks become ToolCalls.
func convertResponse(response *anthropic.Message) (*entity.Message, error) {
	var text strings.Builder
	var toolCalls []entity.ToolCall

	for _, content := range response.Content {
		switch content.Type {
		case "text":
			text.WriteString(content.Text)
		case "tool_use":
			input := map[string]any{}
			if len(content.Input) > 0 {
				if err := json.Unmarshal(content.Input, &input); err != nil {
					return nil, fmt.Errorf("decoding tool input for %s: %w", content.Name, err)
				}
			}
			toolCalls = append(toolCalls, entity.ToolCall{
				ID:        content.ID,
				Name:      content.Name,
				Input:     input,
				InputJSON: string(content.Input),
			})
		}
	}

	content := text.String()
	if content == "" && len(toolCalls) == 0 {
		content = string(response.StopReason)
	}

	msg, err := entity.NewAssistantMessage(content, toolCalls)
	if err != nil {
		return nil, fmt.Errorf("building assistant message: %w", err)
	}
	return msg, nil
}

// compile-time check
var _ port.ModelProvider = (*AnthropicAdapter)(nil)
