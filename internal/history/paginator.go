// Package history tracks the cursor into server-stored message history. Pages
// load newest-first as the user scrolls up; each page is prepended so the
// held sequence stays ordered oldest to newest.
package history

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/chat"
)

// Fetcher loads one page of a chat's history.
type Fetcher interface {
	FetchPage(ctx context.Context, chatID string, page int) (chat.Page, error)
}

// Paginator is a pure state machine: the owning session decides when to
// fetch and feeds results back. It allows one fetch in flight at a time.
type Paginator struct {
	pageSize int
	page     int
	total    int
	loaded   bool
	done     bool
	inFlight bool
	pending  int
	messages []chat.Message
	ids      map[string]struct{}
}

// New creates a paginator. A positive pageSize lets a short page mark the
// top of history; zero disables that check.
func New(pageSize int) *Paginator {
	return &Paginator{
		pageSize: pageSize,
		page:     1,
		ids:      make(map[string]struct{}),
	}
}

// Begin reserves the next fetch and returns the page to request. It returns
// false while a fetch is pending or once the top of history was reached;
// callers drop the request rather than queue it.
func (p *Paginator) Begin() (int, bool) {
	if p.inFlight || p.done {
		return 0, false
	}
	next := 1
	if p.loaded {
		if p.total > 0 && p.page >= p.total {
			p.done = true
			return 0, false
		}
		next = p.page + 1
	}
	p.inFlight = true
	p.pending = next
	return next, true
}

// Apply merges a fetched page. Messages whose id is already held, or for
// which exclude returns true, are skipped. The merge is all-or-nothing and
// returns the number of messages prepended.
func (p *Paginator) Apply(page int, res chat.Page, exclude func(id string) bool) (int, error) {
	if !p.inFlight || page != p.pending {
		return 0, fmt.Errorf("history: unexpected page %d (pending %d)", page, p.pending)
	}

	batch := make([]chat.Message, 0, len(res.Messages))
	seen := make(map[string]struct{}, len(res.Messages))
	for _, m := range res.Messages {
		if _, ok := p.ids[m.ID]; ok {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if exclude != nil && exclude(m.ID) {
			continue
		}
		seen[m.ID] = struct{}{}
		batch = append(batch, m)
	}

	merged := make([]chat.Message, 0, len(batch)+len(p.messages))
	merged = append(merged, batch...)
	merged = append(merged, p.messages...)
	p.messages = merged
	for id := range seen {
		p.ids[id] = struct{}{}
	}

	p.inFlight = false
	p.loaded = true
	p.page = page
	if res.TotalPages > 0 {
		p.total = res.TotalPages
	}
	if p.pageSize > 0 && len(res.Messages) < p.pageSize {
		p.done = true
	}
	if p.total > 0 && p.page >= p.total {
		p.done = true
	}
	return len(batch), nil
}

// Fail releases the in-flight slot after a failed fetch. The page cursor does
// not move, so the next Begin asks for the same page again.
func (p *Paginator) Fail(page int) {
	if p.inFlight && page == p.pending {
		p.inFlight = false
	}
}

// Reset returns to the state of a freshly opened session.
func (p *Paginator) Reset() {
	p.page = 1
	p.total = 0
	p.loaded = false
	p.done = false
	p.inFlight = false
	p.pending = 0
	p.messages = nil
	clear(p.ids)
}

// Page returns the highest page merged so far (1 before the first fetch).
func (p *Paginator) Page() int { return p.page }

// TotalPages returns the last reported page count, 0 while unknown.
func (p *Paginator) TotalPages() int { return p.total }

// Exhausted reports whether the top of history was reached.
func (p *Paginator) Exhausted() bool { return p.done }

// InFlight reports whether a fetch is pending.
func (p *Paginator) InFlight() bool { return p.inFlight }

// Contains reports whether a message id is held.
func (p *Paginator) Contains(id string) bool {
	_, ok := p.ids[id]
	return ok
}

// Len returns the number of held messages.
func (p *Paginator) Len() int { return len(p.messages) }

// Messages returns a copy of the held history, oldest first.
func (p *Paginator) Messages() []chat.Message {
	out := make([]chat.Message, len(p.messages))
	copy(out, p.messages)
	return out
}
