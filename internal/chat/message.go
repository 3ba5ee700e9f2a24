// Package chat holds the domain types shared by the synchronization engine:
// messages, transport events and their payloads, and the error taxonomy.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Reserved identity used for client-side system alerts.
const (
	SystemSenderID   = "admin-system"
	SystemSenderName = "Admin"
)

// Sender identifies the author of a message.
type Sender struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Message is a persisted chat message, or a synthetic system alert.
type Message struct {
	ID        string    `json:"_id"`
	ChatID    string    `json:"chat"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSystemAlert builds an inline alert for a non-chat event such as a
// membership change. Alerts never come from history.
func NewSystemAlert(chatID, text string, now time.Time) Message {
	return Message{
		ID:        "alert-" + uuid.NewString(),
		ChatID:    chatID,
		Sender:    Sender{ID: SystemSenderID, Name: SystemSenderName},
		Content:   text,
		CreatedAt: now,
	}
}

// IsSystemAlert reports whether m was synthesized by the client.
func (m Message) IsSystemAlert() bool {
	return m.Sender.ID == SystemSenderID
}

// Page is one page of server-stored history, ordered oldest to newest.
type Page struct {
	Messages   []Message `json:"messages"`
	TotalPages int       `json:"totalPages"`
}

// Details is the chat metadata needed to open a session.
type Details struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name"`
	GroupChat bool     `json:"groupChat"`
	Members   []string `json:"members"`
}
