package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/chatsync/internal/chat"
)

type emitted struct {
	kind    chat.Kind
	payload any
	at      time.Time
}

type fakeTransport struct {
	mu       sync.Mutex
	clock    clock.Clock
	sent     []emitted
	err      error
	gate     chan struct{}
	gateKind chat.Kind
}

// hold blocks the next write of kind until the returned channel is closed.
func (f *fakeTransport) hold(kind chat.Kind) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.gateKind = kind
	return f.gate
}

func (f *fakeTransport) Emit(_ context.Context, kind chat.Kind, payload any) error {
	f.mu.Lock()
	gate := f.gate
	if gate != nil && kind == f.gateKind {
		f.gate = nil
		f.mu.Unlock()
		<-gate
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	e := emitted{kind: kind, payload: payload}
	if f.clock != nil {
		e.at = f.clock.Now()
	}
	f.sent = append(f.sent, e)
	return f.err
}

func (f *fakeTransport) all(kind chat.Kind) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.sent {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) count(kind chat.Kind) int {
	return len(f.all(kind))
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePages struct {
	mu    sync.Mutex
	pages map[string]map[int]chat.Page
	fail  map[int]error
	calls []int
	gate  chan struct{}
}

func newFakePages() *fakePages {
	return &fakePages{
		pages: make(map[string]map[int]chat.Page),
		fail:  make(map[int]error),
	}
}

func (f *fakePages) set(chatID string, page int, p chat.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pages[chatID] == nil {
		f.pages[chatID] = make(map[int]chat.Page)
	}
	f.pages[chatID][page] = p
}

func (f *fakePages) failPage(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, page)
		return
	}
	f.fail[page] = err
}

// holdNext blocks the next fetch until the returned channel is closed.
// The held fetch ignores cancellation, like a response already in flight.
func (f *fakePages) holdNext() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakePages) FetchPage(_ context.Context, chatID string, page int) (chat.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[page]; err != nil {
		return chat.Page{}, err
	}
	return f.pages[chatID][page], nil
}

func (f *fakePages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMeta struct {
	mu      sync.Mutex
	details map[string]chat.Details
	err     error
	gate    chan struct{}
}

func (f *fakeMeta) FetchChat(_ context.Context, chatID string) (chat.Details, error) {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return chat.Details{}, f.err
	}
	return f.details[chatID], nil
}

type fakeMarkers struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeMarkers) ClearUnread(chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, chatID)
	return nil
}

type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func (l *changeLog) record(c Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) has(kind ChangeKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.changes {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func (l *changeLog) find(kind ChangeKind) (Change, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.changes {
		if c.Kind == kind {
			return c, true
		}
	}
	return Change{}, false
}
