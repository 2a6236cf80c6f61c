package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xonecas/lumi/internal/msglog"
)

// messageExtras holds the rarely-populated message fields, packed into one
// JSON column instead of three sparse tables.
type messageExtras struct {
	Attachments []string              `json:"attachments,omitempty"`
	Skills      []msglog.SkillRef     `json:"skills,omitempty"`
	Sources     []msglog.SearchSource `json:"sources,omitempty"`
}

func (e messageExtras) empty() bool {
	return len(e.Attachments) == 0 && len(e.Skills) == 0 && len(e.Sources) == 0
}

// AppendMessage persists one log message under a chat. A missing ID or
// timestamp is filled in, mirroring msglog.Log.Append.
func (s *Store) AppendMessage(chatID string, m *msglog.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	extras := messageExtras{
		Attachments: m.Attachments,
		Skills:      m.ActiveSkills,
		Sources:     m.Sources,
	}
	var extrasJSON string
	if !extras.empty() {
		data, err := json.Marshal(extras)
		if err != nil {
			return fmt.Errorf("marshal message extras: %w", err)
		}
		extrasJSON = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO messages (id, chat_id, role, author, content, tool_name, tool_call_id, tool_args, tool_status, extras, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, chatID, m.Role, m.Author, m.Content, m.ToolName, m.ToolCallID, m.ToolArgs, m.ToolStatus, extrasJSON, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// UpdateMessage rewrites a message's content and tool status. Used when a
// streamed message finalizes or a tool call resolves.
func (s *Store) UpdateMessage(m *msglog.Message) error {
	result, err := s.db.Exec(`
		UPDATE messages SET content = ?, tool_status = ? WHERE id = ?
	`, m.Content, m.ToolStatus, m.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMessages returns a chat's full log in chronological order.
func (s *Store) ListMessages(chatID string) ([]*msglog.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, role, author, content, tool_name, tool_call_id, tool_args, tool_status, extras, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*msglog.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of messages in a chat.
func (s *Store) CountMessages(chatID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&count)
	return count, err
}

// DeleteMessages deletes all messages in a chat without deleting the chat.
func (s *Store) DeleteMessages(chatID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func scanMessage(rows *sql.Rows) (*msglog.Message, error) {
	var m msglog.Message
	var extrasJSON string
	err := rows.Scan(&m.ID, &m.Role, &m.Author, &m.Content, &m.ToolName, &m.ToolCallID,
		&m.ToolArgs, &m.ToolStatus, &extrasJSON, &m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}

	if extrasJSON != "" {
		var extras messageExtras
		if err := json.Unmarshal([]byte(extrasJSON), &extras); err != nil {
			return nil, fmt.Errorf("unmarshal message extras: %w", err)
		}
		m.Attachments = extras.Attachments
		m.ActiveSkills = extras.Skills
		m.Sources = extras.Sources
	}

	return &m, nil
}
