// Package msglog provides the append-only conversation log and its events.
package msglog

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleReasoning Role = "reasoning"
	RoleSystem    Role = "system"
)

// ToolStatus tracks tool execution progress on a tool message.
type ToolStatus string

const (
	ToolStatusNone       ToolStatus = ""
	ToolStatusInProgress ToolStatus = "in_progress"
	ToolStatusCompleted  ToolStatus = "completed"
	ToolStatusFailed     ToolStatus = "failed"
)

// SkillRef points at a skill the assistant pulled in during a turn.
type SkillRef struct {
	Name        string
	Description string
}

// SearchSource is one citation collected from a search tool.
type SearchSource struct {
	Title string
	URL   string
}

// Message is one record in the conversation log. The struct is shared by
// reference: the producer mutates Content and ToolStatus in place while
// streaming, and announces each mutation through the log's event bus.
type Message struct {
	ID           string
	Role         Role
	Content      string
	Author       string
	ToolName     string
	ToolCallID   string
	ToolArgs     string // raw JSON argument payload for tool messages
	ToolStatus   ToolStatus
	Timestamp    time.Time
	Attachments  []string
	ActiveSkills []SkillRef
	Sources      []SearchSource
}

// IsTool reports whether the message represents tool activity.
func (m *Message) IsTool() bool {
	return m.Role == RoleTool
}

// EventType identifies a log event.
type EventType string

const (
	EventAdded          EventType = "added"
	EventReset          EventType = "reset"
	EventStatusChanged  EventType = "status_changed"
	EventContentChanged EventType = "content_changed"
)

// Event describes a change to the log or to one of its messages.
type Event struct {
	Type      EventType
	Message   *Message // nil for EventReset
	Timestamp time.Time
}
