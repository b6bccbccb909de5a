package store

import (
	"database/sql"
	"errors"
	"time"
)

// JournalSend records an optimistic send as pending.
func (db *DB) JournalSend(clientMsgID, peerID, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, peer_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)`,
		clientMsgID, peerID, body, now, now)
	return err
}

// MarkOutboxConfirmed records the server id of an echoed send.
func (db *DB) MarkOutboxConfirmed(clientMsgID, serverMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'confirmed', server_msg_id = ?, error_message = '', updated_at = ? WHERE client_msg_id = ?`,
		serverMsgID, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// MarkOutboxRetried moves a failed entry back to pending and counts the attempt.
func (db *DB) MarkOutboxRetried(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'pending', attempts = attempts + 1, error_message = '', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxDiscarded records that the user dropped an unsent message.
func (db *DB) MarkOutboxDiscarded(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'discarded', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// GetOutbox returns one entry by client id, or nil if there is none.
func (db *DB) GetOutbox(clientMsgID string) (*OutboxEntry, error) {
	var e OutboxEntry
	err := db.QueryRow(`
		SELECT id, client_msg_id, peer_id, body, status, attempts, server_msg_id, error_message, created_at, updated_at
		FROM outbox WHERE client_msg_id = ?`, clientMsgID).
		Scan(&e.ID, &e.ClientMsgID, &e.PeerID, &e.Body, &e.Status, &e.Attempts, &e.ServerMsgID, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListOutbox returns entries newest first. Empty peerID or status match all.
func (db *DB) ListOutbox(peerID string, status OutboxStatus, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, client_msg_id, peer_id, body, status, attempts, server_msg_id, error_message, created_at, updated_at
		FROM outbox WHERE 1 = 1`
	var args []any
	if peerID != "" {
		q += " AND peer_id = ?"
		args = append(args, peerID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.PeerID, &e.Body, &e.Status, &e.Attempts, &e.ServerMsgID, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StaleOutbox returns pending entries not updated since before, oldest first.
func (db *DB) StaleOutbox(before time.Time, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, client_msg_id, peer_id, body, status, attempts, server_msg_id, error_message, created_at, updated_at
		FROM outbox WHERE status = 'pending' AND updated_at < ?
		ORDER BY updated_at ASC, id ASC LIMIT ?`, before.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.PeerID, &e.Body, &e.Status, &e.Attempts, &e.ServerMsgID, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountOutbox tallies entries by status.
func (db *DB) CountOutbox() (OutboxCounts, error) {
	var c OutboxCounts
	rows, err := db.Query(`SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return c, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			s OutboxStatus
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return c, err
		}
		switch s {
		case OutboxPending:
			c.Pending = n
		case OutboxConfirmed:
			c.Confirmed = n
		case OutboxFailed:
			c.Failed = n
		case OutboxDiscarded:
			c.Discarded = n
		}
	}
	return c, rows.Err()
}
