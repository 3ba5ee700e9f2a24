package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

const upsertMessageSQL = `
	INSERT INTO messages (chat_id, msg_id, sender_id, sender_name, content, created_at, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(chat_id, msg_id) DO UPDATE SET
		sender_name = excluded.sender_name,
		content = excluded.content`

const touchChatSQL = `
	INSERT INTO chats (id, last_message_at, last_message_preview, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
		last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at
			THEN excluded.last_message_preview ELSE chats.last_message_preview END,
		updated_at = excluded.updated_at`

// UpsertMessage stores a message and advances its chat's last-message
// fields (idempotent on chat id + message id).
func (db *DB) UpsertMessage(m chat.Message) error {
	return db.UpsertMessages([]chat.Message{m})
}

// UpsertMessages stores a batch in one transaction.
func (db *DB) UpsertMessages(msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if m.ChatID == "" || m.ID == "" {
			return fmt.Errorf("message %q: missing chat or message id", m.ID)
		}
		created := m.CreatedAt.UnixMilli()
		if m.CreatedAt.IsZero() {
			created = now
		}
		if _, err := tx.Exec(touchChatSQL, m.ChatID, created, truncate(m.Content, previewLen), now); err != nil {
			return fmt.Errorf("touch chat %q: %w", m.ChatID, err)
		}
		if _, err := tx.Exec(upsertMessageSQL,
			m.ChatID, m.ID, m.Sender.ID, m.Sender.Name, m.Content, created, now); err != nil {
			return fmt.Errorf("upsert message %q: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns up to limit messages of a chat created before
// beforeMs (0 means now), ordered oldest to newest.
func (db *DB) ListMessages(chatID string, beforeMs int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeMs <= 0 {
		beforeMs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT chat_id, msg_id, sender_id, sender_name, content, created_at
		FROM messages
		WHERE chat_id = ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, chatID, beforeMs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m       chat.Message
			created int64
		)
		if err := rows.Scan(&m.ChatID, &m.ID, &m.Sender.ID, &m.Sender.Name, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
