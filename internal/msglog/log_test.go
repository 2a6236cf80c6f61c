package msglog

import (
	"testing"
	"time"
)

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	l := New(nil)

	m := l.Append(&Message{Role: RoleUser, Content: "hi"})
	if m.ID == "" {
		t.Error("expected generated ID")
	}
	if m.Timestamp.IsZero() {
		t.Error("expected generated timestamp")
	}
	if l.Len() != 1 {
		t.Errorf("expected len=1, got %d", l.Len())
	}
}

func TestAppendPublishesAdded(t *testing.T) {
	bus := NewEventBus(10)
	l := New(bus)
	ch := bus.Subscribe()

	m := l.Append(&Message{Role: RoleUser, Content: "hi"})

	select {
	case ev := <-ch:
		if ev.Type != EventAdded {
			t.Errorf("expected type=%s, got %s", EventAdded, ev.Type)
		}
		if ev.Message != m {
			t.Error("expected event to carry the appended message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestAppendDeltaGrowsContent(t *testing.T) {
	bus := NewEventBus(10)
	l := New(bus)
	ch := bus.Subscribe()

	m := l.Append(&Message{Role: RoleAssistant})
	<-ch // drain Added

	l.AppendDelta(m, "Hel")
	l.AppendDelta(m, "lo")
	if m.Content != "Hello" {
		t.Errorf("expected content=Hello, got %q", m.Content)
	}

	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			if ev.Type != EventContentChanged {
				t.Errorf("expected content_changed, got %s", ev.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for content event")
		}
	}

	// Empty delta publishes nothing.
	l.AppendDelta(m, "")
	select {
	case ev := <-ch:
		t.Errorf("unexpected event %s for empty delta", ev.Type)
	default:
	}
}

func TestSetToolStatusTransitionsOnce(t *testing.T) {
	l := New(nil)
	m := l.Append(&Message{
		Role:       RoleTool,
		ToolName:   "powershell",
		ToolStatus: ToolStatusInProgress,
	})

	l.SetToolStatus(m, ToolStatusCompleted)
	if m.ToolStatus != ToolStatusCompleted {
		t.Fatalf("expected completed, got %s", m.ToolStatus)
	}

	// Terminal status never changes again.
	l.SetToolStatus(m, ToolStatusFailed)
	if m.ToolStatus != ToolStatusCompleted {
		t.Errorf("status changed after terminal transition: %s", m.ToolStatus)
	}
}

func TestLoadPublishesNothing(t *testing.T) {
	bus := NewEventBus(10)
	l := New(bus)
	ch := bus.Subscribe()

	l.Load([]*Message{
		{ID: "m1", Role: RoleUser, Content: "hi"},
		{ID: "m2", Role: RoleAssistant, Content: "hello"},
	})

	if l.Len() != 2 {
		t.Errorf("expected len=2, got %d", l.Len())
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected event %s during load", ev.Type)
	default:
	}
}

func TestResetPublishesReset(t *testing.T) {
	bus := NewEventBus(10)
	l := New(bus)
	ch := bus.Subscribe()

	l.Append(&Message{Role: RoleUser, Content: "hi"})
	<-ch

	l.Reset()
	if l.Len() != 0 {
		t.Errorf("expected empty log, got %d", l.Len())
	}

	select {
	case ev := <-ch:
		if ev.Type != EventReset {
			t.Errorf("expected reset, got %s", ev.Type)
		}
		if ev.Message != nil {
			t.Error("reset event should not carry a message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for reset event")
	}
}
