package entity

import (
	"errors"
	"time"
)

var (
	ErrNilMessage          = errors.New("message cannot be nil")
	ErrInvalidMessageOrder = errors.New("conversation cannot start with an assistant message")
)

// Conversation is the ordered transcript of one investigation. It is owned by
// exactly one investigation run, grows monotonically, and is never truncated;
// the iteration cap bounds its size instead.
type Conversation struct {
	messages  []Message
	createdAt time.Time
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		messages:  []Message{},
		createdAt: time.Now(),
	}
}

// AddMessage validates and appends a message to the transcript.
func (c *Conversation) AddMessage(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if len(c.messages) == 0 && msg.Role == RoleAssistant {
		return ErrInvalidMessageOrder
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the transcript in order.
func (c *Conversation) Messages() []Message {
	copied := make([]Message, len(c.messages))
	copy(copied, c.messages)
	return copied
}

// Len returns the number of recorded turns.
func (c *Conversation) Len() int { return len(c.messages) }

// LastMessage returns the most recent turn, or nil for an empty transcript.
func (c *Conversation) LastMessage() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	last := c.messages[len(c.messages)-1]
	return &last
}

// CreatedAt returns when the conversation was started.
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }
