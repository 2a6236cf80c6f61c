package msglog

import (
	"time"

	"github.com/google/uuid"
)

// Log is the append-only conversation log. Messages are never removed
// individually; the whole log resets when the user switches chats.
//
// The log is owned by the UI goroutine. The bus exists so the transcript
// engine and persistence can observe mutations without polling.
type Log struct {
	messages []*Message
	bus      *EventBus
}

// New creates an empty log publishing to bus.
func New(bus *EventBus) *Log {
	return &Log{bus: bus}
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// At returns the message at index i.
func (l *Log) At(i int) *Message {
	return l.messages[i]
}

// Messages returns the backing slice. Callers must not reorder it.
func (l *Log) Messages() []*Message {
	return l.messages
}

// Append adds a message to the end of the log and publishes Added.
// A missing ID or timestamp is filled in.
func (l *Log) Append(m *Message) *Message {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	l.messages = append(l.messages, m)
	l.publish(EventAdded, m)
	return m
}

// AppendDelta grows the content of a streaming message in place and
// publishes ContentChanged.
func (l *Log) AppendDelta(m *Message, delta string) {
	if delta == "" {
		return
	}
	m.Content += delta
	l.publish(EventContentChanged, m)
}

// SetContent replaces the content of a streaming message and publishes
// ContentChanged.
func (l *Log) SetContent(m *Message, content string) {
	m.Content = content
	l.publish(EventContentChanged, m)
}

// SetToolStatus transitions a tool message's status and publishes
// StatusChanged. A status can only leave InProgress once; later transitions
// are ignored.
func (l *Log) SetToolStatus(m *Message, status ToolStatus) {
	if m.ToolStatus == ToolStatusCompleted || m.ToolStatus == ToolStatusFailed {
		return
	}
	if m.ToolStatus == status {
		return
	}
	m.ToolStatus = status
	l.publish(EventStatusChanged, m)
}

// Reset drops all messages and publishes Reset. Used on chat switch.
func (l *Log) Reset() {
	l.messages = nil
	if l.bus != nil {
		l.bus.Publish(Event{Type: EventReset, Timestamp: time.Now().UTC()})
	}
}

// Load replaces the log contents without publishing any events: callers
// hydrate the transcript with a full rebuild instead of replaying Added
// events.
func (l *Log) Load(messages []*Message) {
	l.messages = append([]*Message(nil), messages...)
}

func (l *Log) publish(t EventType, m *Message) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(Event{Type: t, Message: m, Timestamp: time.Now().UTC()})
}
