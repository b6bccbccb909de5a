package store

import (
	"database/sql"
	"errors"
	"time"
)

// TouchConversation records that the conversation with peerID was opened at t.
func (db *DB) TouchConversation(peerID string, t time.Time) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (peer_id, last_opened_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET
			last_opened_at = excluded.last_opened_at,
			updated_at = excluded.updated_at`,
		peerID, t.UnixMilli(), now)
	return err
}

// RecordMessage updates the preview of a conversation if the message at t
// is newer than the one already recorded.
func (db *DB) RecordMessage(peerID, preview string, t time.Time) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (peer_id, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at
		WHERE excluded.last_message_at >= conversations.last_message_at`,
		peerID, t.UnixMilli(), preview, now)
	return err
}

// ListConversations returns conversations by most recent activity, opening
// or message, whichever is later.
func (db *DB) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT peer_id, last_opened_at, last_message_at, last_message_preview
		FROM conversations
		ORDER BY MAX(last_opened_at, last_message_at) DESC, peer_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.PeerID, &c.LastOpenedAt, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil if it was never opened.
func (db *DB) GetConversation(peerID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT peer_id, last_opened_at, last_message_at, last_message_preview
		FROM conversations WHERE peer_id = ?`, peerID).
		Scan(&c.PeerID, &c.LastOpenedAt, &c.LastMessageAt, &c.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
