package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertChat stores chat metadata, leaving counters and the last message
// untouched for existing rows.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, name, is_group, unread_alerts, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			is_group = excluded.is_group,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.IsGroup, c.UnreadAlerts, c.LastMessageAt, truncate(c.LastMessagePreview, previewLen), now)
	return err
}

// ListChats returns chats sorted by last message timestamp descending.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, COALESCE(NULLIF(name,''), id), is_group, unread_alerts, last_message_at, last_message_preview
		FROM chats
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &c.UnreadAlerts, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ListUnread returns chats with at least one unread-alert marker.
func (db *DB) ListUnread() ([]Chat, error) {
	chats, err := db.ListChats(1000, 0)
	if err != nil {
		return nil, err
	}
	out := chats[:0]
	for _, c := range chats {
		if c.UnreadAlerts > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChat returns a single chat by id, or nil when unknown.
func (db *DB) GetChat(id string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT id, COALESCE(NULLIF(name,''), id), is_group, unread_alerts, last_message_at, last_message_preview
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.IsGroup, &c.UnreadAlerts, &c.LastMessageAt, &c.LastMessagePreview)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementUnread bumps the unread-alert marker, creating the chat row if needed.
func (db *DB) IncrementUnread(id string) error {
	_, err := db.Exec(`
		INSERT INTO chats (id, unread_alerts, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			unread_alerts = chats.unread_alerts + 1,
			updated_at = excluded.updated_at`,
		id, time.Now().UnixMilli())
	return err
}

// ClearUnread resets the unread-alert marker of a chat. Unknown chats are a no-op.
func (db *DB) ClearUnread(id string) error {
	_, err := db.Exec(`UPDATE chats SET unread_alerts = 0, updated_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	return err
}
