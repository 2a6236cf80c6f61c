package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chat represents a stored conversation.
type Chat struct {
	ID        string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateChat creates a new chat record.
func (s *Store) CreateChat(title, provider, model string) (*Chat, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO chats (id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, title, provider, model, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	return &Chat{
		ID:        id,
		Title:     title,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetChat retrieves a chat by ID.
func (s *Store) GetChat(id string) (*Chat, error) {
	row := s.db.QueryRow(`
		SELECT id, title, provider, model, created_at, updated_at
		FROM chats WHERE id = ?
	`, id)

	var c Chat
	if err := row.Scan(&c.ID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats() ([]*Chat, error) {
	rows, err := s.db.Query(`
		SELECT id, title, provider, model, created_at, updated_at
		FROM chats ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.Provider, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, &c)
	}

	return chats, rows.Err()
}

// RenameChat updates a chat's title.
func (s *Store) RenameChat(id, title string) error {
	result, err := s.db.Exec(`
		UPDATE chats SET title = ?, updated_at = ? WHERE id = ?
	`, title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateChatModel updates a chat's provider and model.
func (s *Store) UpdateChatModel(id, provider, model string) error {
	result, err := s.db.Exec(`
		UPDATE chats SET provider = ?, model = ?, updated_at = ? WHERE id = ?
	`, provider, model, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update chat model: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchChat bumps a chat's updated_at so it sorts to the top of the list.
func (s *Store) TouchChat(id string) error {
	_, err := s.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// DeleteChat deletes a chat and its messages (via CASCADE).
func (s *Store) DeleteChat(id string) error {
	result, err := s.db.Exec(`DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountChats returns the total number of chats.
func (s *Store) CountChats() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}
