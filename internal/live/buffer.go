// Package live holds the messages and alerts received from the event stream
// since a chat session was opened.
package live

import "github.com/matheus3301/chatsync/internal/chat"

// Buffer is an append-only, arrival-ordered sequence. It performs no
// deduplication and is bounded only by the session lifetime. It is not
// goroutine-safe; the owning session serializes access.
type Buffer struct {
	items []chat.Message
	ids   map[string]int
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{ids: make(map[string]int)}
}

// Append adds item at the end of the buffer.
func (b *Buffer) Append(item chat.Message) {
	b.items = append(b.items, item)
	b.ids[item.ID]++
}

// Contains reports whether an item with the given id has been appended.
func (b *Buffer) Contains(id string) bool {
	return b.ids[id] > 0
}

// Len returns the number of buffered items.
func (b *Buffer) Len() int {
	return len(b.items)
}

// Items returns a copy of the buffered items in arrival order.
func (b *Buffer) Items() []chat.Message {
	out := make([]chat.Message, len(b.items))
	copy(out, b.items)
	return out
}

// Clear drops every item. Only the session teardown calls it.
func (b *Buffer) Clear() {
	b.items = nil
	clear(b.ids)
}
