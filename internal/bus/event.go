package bus

import (
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// Namespaces used on the bus.
const (
	NamespaceChat    = "chat."    // inbound transport events, payload chat.Event
	NamespaceConn    = "conn."    // transport connectivity
	NamespaceSession = "session." // chat session lifecycle
	NamespaceStore   = "store."   // local cache updates
)

// Connection and session event kinds.
const (
	KindConnOnline        = "conn.online"
	KindConnLost          = "conn.lost"
	KindConnStatusChanged = "conn.status_changed"
	KindSessionOpened     = "session.opened"
	KindSessionClosed     = "session.closed"
	KindSessionPage       = "session.history_page"
	KindStoreUpdated      = "store.updated"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ChatKind maps a transport event kind onto its bus kind.
func ChatKind(k chat.Kind) string {
	return NamespaceChat + string(k)
}

// Inbound wraps a decoded transport event for publishing.
func Inbound(evt chat.Event) Event {
	return Event{Kind: ChatKind(evt.Kind), Timestamp: time.Now(), Payload: evt}
}

// HistoryPage is the payload of session.history_page.
type HistoryPage struct {
	ChatID   string
	Page     int
	Messages []chat.Message
}
