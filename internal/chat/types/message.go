package types

import "time"

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message types. Only TypeMessage is editable; the others represent
// agent-internal work.
const (
	TypeMessage    = "message"
	TypeThought    = "thought"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
)

// DefaultConversationID groups messages when the caller names no
// conversation.
const DefaultConversationID = "default"

// Attachment describes a file stored alongside a message.
type Attachment struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// Message is one unit of conversation history. CreatedAt is assigned by
// the server and is the sole ordering key.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Role           string      `json:"role"`
	Type           string      `json:"type"`
	Content        string      `json:"content"`
	Name           string      `json:"name,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Editable reports whether content edits are allowed for this message.
func (m *Message) Editable() bool {
	return m.Type == TypeMessage
}

// ListFilter selects a window of messages. Before and Around are
// mutually exclusive; Before wins if both are set.
type ListFilter struct {
	ConversationID string
	Before         *time.Time
	Around         string
	Limit          int
}

// ValidType reports whether t is a known message type.
func ValidType(t string) bool {
	switch t {
	case TypeMessage, TypeThought, TypeToolCall, TypeToolResult:
		return true
	}
	return false
}
