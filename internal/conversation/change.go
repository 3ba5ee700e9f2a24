package conversation

import "github.com/matheus3301/chatsync/internal/chat"

// ChangeKind identifies what a mutation touched.
type ChangeKind int

const (
	ChangeOpened ChangeKind = iota + 1
	ChangeClosed
	ChangePageRequested
	ChangeHistoryPrepended
	ChangePageFailed
	ChangeLiveAppended
	ChangeTypingChanged
	ChangeCompositionChanged
	ChangeUnavailable
)

var changeNames = map[ChangeKind]string{
	ChangeOpened:             "opened",
	ChangeClosed:             "closed",
	ChangePageRequested:      "page_requested",
	ChangeHistoryPrepended:   "history_prepended",
	ChangePageFailed:         "page_failed",
	ChangeLiveAppended:       "live_appended",
	ChangeTypingChanged:      "typing_changed",
	ChangeCompositionChanged: "composition_changed",
	ChangeUnavailable:        "unavailable",
}

func (k ChangeKind) String() string {
	if name, ok := changeNames[k]; ok {
		return name
	}
	return "unknown"
}

// Change is delivered to observers after every mutation. Prepended is the
// number of messages a history page added, which the renderer uses to keep
// its scroll anchor.
type Change struct {
	Kind      ChangeKind
	ChatID    string
	Prepended int
	Err       error
}

// State is a point-in-time copy of the session. TotalPages is 0 while unknown.
type State struct {
	ChatID           string
	SelfUserID       string
	Members          []string
	HistoryPage      int
	TotalPages       int
	HistoryExhausted bool
	Loading          bool
	History          []chat.Message
	Live             []chat.Message
	LocalTyping      bool
	RemoteTyping     bool
	Composition      string
}

// Subscribe registers fn to be called on the session loop after each
// mutation. fn may read View and State but must not call methods that
// mutate the session, or it deadlocks the loop.
func (s *Session) Subscribe(fn func(Change)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify(c Change) {
	s.obsMu.Lock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
