package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/xonecas/lumi/internal/msglog"
)

func setupStoreTest(t *testing.T) (*Store, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s, func() { s.Close() }
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer s.Close()

	// Verify tables exist by querying them
	_, err = s.db.Exec("SELECT 1 FROM chats LIMIT 1")
	if err != nil {
		t.Errorf("chats table not created: %v", err)
	}

	_, err = s.db.Exec("SELECT 1 FROM messages LIMIT 1")
	if err != nil {
		t.Errorf("messages table not created: %v", err)
	}
}

func TestChatCRUD(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	// Create
	chat, err := s.CreateChat("First chat", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}
	if chat.ID == "" {
		t.Error("expected non-empty chat ID")
	}
	if chat.Title != "First chat" {
		t.Errorf("expected title=First chat, got %s", chat.Title)
	}

	// Get
	fetched, err := s.GetChat(chat.ID)
	if err != nil {
		t.Fatalf("GetChat() error: %v", err)
	}
	if fetched.ID != chat.ID || fetched.Model != "gpt-4o" {
		t.Errorf("fetched chat mismatch: %+v", fetched)
	}

	// List
	chats, err := s.ListChats()
	if err != nil {
		t.Fatalf("ListChats() error: %v", err)
	}
	if len(chats) != 1 {
		t.Errorf("expected 1 chat, got %d", len(chats))
	}

	// Rename
	if err := s.RenameChat(chat.ID, "Renamed"); err != nil {
		t.Fatalf("RenameChat() error: %v", err)
	}
	fetched, _ = s.GetChat(chat.ID)
	if fetched.Title != "Renamed" {
		t.Errorf("expected title=Renamed, got %s", fetched.Title)
	}

	// Update model
	if err := s.UpdateChatModel(chat.ID, "openai", "gpt-4o-mini"); err != nil {
		t.Fatalf("UpdateChatModel() error: %v", err)
	}
	fetched, _ = s.GetChat(chat.ID)
	if fetched.Model != "gpt-4o-mini" {
		t.Errorf("expected model=gpt-4o-mini, got %s", fetched.Model)
	}

	// Count
	count, err := s.CountChats()
	if err != nil {
		t.Fatalf("CountChats() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count=1, got %d", count)
	}

	// Delete
	if err := s.DeleteChat(chat.ID); err != nil {
		t.Fatalf("DeleteChat() error: %v", err)
	}
	count, _ = s.CountChats()
	if count != 0 {
		t.Errorf("expected count=0 after delete, got %d", count)
	}
}

func TestChatUpdateMissingRow(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	if err := s.RenameChat("no-such-id", "x"); err != sql.ErrNoRows {
		t.Errorf("RenameChat() error = %v, want sql.ErrNoRows", err)
	}
	if err := s.DeleteChat("no-such-id"); err != sql.ErrNoRows {
		t.Errorf("DeleteChat() error = %v, want sql.ErrNoRows", err)
	}
}

func TestListChatsOrdersByRecency(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	older, err := s.CreateChat("older", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}
	newer, err := s.CreateChat("newer", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}

	// Touching the older chat moves it to the top.
	time.Sleep(10 * time.Millisecond)
	if err := s.TouchChat(older.ID); err != nil {
		t.Fatalf("TouchChat() error: %v", err)
	}

	chats, err := s.ListChats()
	if err != nil {
		t.Fatalf("ListChats() error: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != older.ID || chats[1].ID != newer.ID {
		t.Errorf("expected touched chat first, got [%s, %s]", chats[0].Title, chats[1].Title)
	}
}

func TestMessagePersistenceRoundTrip(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	chat, err := s.CreateChat("chat", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	feed := []*msglog.Message{
		{
			Role:        msglog.RoleUser,
			Content:     "hello",
			Timestamp:   base,
			Attachments: []string{"/tmp/notes.md"},
		},
		{
			Role:       msglog.RoleTool,
			ToolName:   "lumi_search",
			ToolCallID: "c1",
			ToolArgs:   `{"query": "cats"}`,
			ToolStatus: msglog.ToolStatusCompleted,
			Timestamp:  base.Add(time.Second),
		},
		{
			Role:      msglog.RoleAssistant,
			Content:   "hi there",
			Timestamp: base.Add(2 * time.Second),
			Sources:   []msglog.SearchSource{{Title: "Cats", URL: "https://example.com/cats"}},
		},
	}

	for _, m := range feed {
		if err := s.AppendMessage(chat.ID, m); err != nil {
			t.Fatalf("AppendMessage() error: %v", err)
		}
		if m.ID == "" {
			t.Error("AppendMessage should fill in a missing ID")
		}
	}

	loaded, err := s.ListMessages(chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}
	if loaded[0].Role != msglog.RoleUser || loaded[0].Content != "hello" {
		t.Errorf("message 0 = %+v", loaded[0])
	}
	if len(loaded[0].Attachments) != 1 || loaded[0].Attachments[0] != "/tmp/notes.md" {
		t.Errorf("attachments did not round-trip: %v", loaded[0].Attachments)
	}
	if loaded[1].ToolName != "lumi_search" || loaded[1].ToolStatus != msglog.ToolStatusCompleted {
		t.Errorf("tool message = %+v", loaded[1])
	}
	if loaded[1].ToolArgs != `{"query": "cats"}` {
		t.Errorf("tool args = %q", loaded[1].ToolArgs)
	}
	if len(loaded[2].Sources) != 1 || loaded[2].Sources[0].URL != "https://example.com/cats" {
		t.Errorf("sources did not round-trip: %v", loaded[2].Sources)
	}

	count, err := s.CountMessages(chat.ID)
	if err != nil {
		t.Fatalf("CountMessages() error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count=3, got %d", count)
	}
}

func TestUpdateMessage(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	chat, err := s.CreateChat("chat", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}

	m := &msglog.Message{
		Role:       msglog.RoleTool,
		ToolName:   "powershell",
		ToolCallID: "c1",
		ToolStatus: msglog.ToolStatusInProgress,
	}
	if err := s.AppendMessage(chat.ID, m); err != nil {
		t.Fatalf("AppendMessage() error: %v", err)
	}

	m.ToolStatus = msglog.ToolStatusFailed
	m.Content = "exit code 1"
	if err := s.UpdateMessage(m); err != nil {
		t.Fatalf("UpdateMessage() error: %v", err)
	}

	loaded, err := s.ListMessages(chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if loaded[0].ToolStatus != msglog.ToolStatusFailed || loaded[0].Content != "exit code 1" {
		t.Errorf("update not persisted: %+v", loaded[0])
	}

	if err := s.UpdateMessage(&msglog.Message{ID: "no-such-id"}); err != sql.ErrNoRows {
		t.Errorf("UpdateMessage() on missing row = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteChatCascadesToMessages(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	chat, err := s.CreateChat("chat", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateChat() error: %v", err)
	}
	if err := s.AppendMessage(chat.ID, &msglog.Message{Role: msglog.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error: %v", err)
	}

	if err := s.DeleteChat(chat.ID); err != nil {
		t.Fatalf("DeleteChat() error: %v", err)
	}

	count, err := s.CountMessages(chat.ID)
	if err != nil {
		t.Fatalf("CountMessages() error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade delete, got %d messages", count)
	}
}
