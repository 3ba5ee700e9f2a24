// Package typing implements the local "I am typing" debounce and the remote
// typing indicator for one bound chat.
package typing

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/chatsync/internal/chat"
)

// DefaultWindow is the inactivity interval after which a burst of edits ends.
const DefaultWindow = 2 * time.Second

// EmitFunc sends a typing-start or typing-stop signal.
type EmitFunc func(kind chat.Kind, payload chat.Typing)

// Coordinator tracks both typing directions. The local side is Idle until
// the first edit, then Active until the window elapses with no edit.
type Coordinator struct {
	clock    clock.Clock
	window   time.Duration
	emit     EmitFunc
	dispatch func(func())

	mu      sync.Mutex
	chatID  string
	members []string
	active  bool
	remote  bool
	timer   *clock.Timer
	gen     uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the clock used for the inactivity timer.
func WithClock(c clock.Clock) Option {
	return func(tc *Coordinator) { tc.clock = c }
}

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(tc *Coordinator) {
		if d > 0 {
			tc.window = d
		}
	}
}

// WithDispatcher routes timer expiry through fn instead of running it on the
// timer goroutine. The chat session passes its event loop here.
func WithDispatcher(fn func(func())) Option {
	return func(tc *Coordinator) { tc.dispatch = fn }
}

// New creates a coordinator that reports local transitions through emit.
func New(emit EmitFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		clock:  clock.New(),
		window: DefaultWindow,
		emit:   emit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind scopes both sides to a chat. It implies Reset.
func (c *Coordinator) Bind(chatID string, members []string) {
	c.Reset()
	c.mu.Lock()
	c.chatID = chatID
	c.members = append([]string(nil), members...)
	c.mu.Unlock()
}

// Touch records a composition edit. The first edit of a burst emits
// typing-start; every edit restarts the inactivity timer.
func (c *Coordinator) Touch() {
	c.mu.Lock()
	if c.chatID == "" {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.window, func() { c.fire(gen) })

	started := !c.active
	c.active = true
	payload := c.payloadLocked()
	c.mu.Unlock()

	if started && c.emit != nil {
		c.emit(chat.KindTypingStart, payload)
	}
}

func (c *Coordinator) fire(gen uint64) {
	if c.dispatch != nil {
		c.dispatch(func() { c.expire(gen) })
		return
	}
	c.expire(gen)
}

func (c *Coordinator) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.timer = nil
	payload := c.payloadLocked()
	c.mu.Unlock()

	if c.emit != nil {
		c.emit(chat.KindTypingStop, payload)
	}
}

// Reset cancels the timer and clears both sides without emitting anything.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.active = false
	c.remote = false
	c.chatID = ""
	c.members = nil
}

// SetRemote applies a peer typing event. Events for another chat are
// ignored. It reports whether the remote flag changed.
func (c *Coordinator) SetRemote(chatID string, typing bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if chatID == "" || chatID != c.chatID || c.remote == typing {
		return false
	}
	c.remote = typing
	return true
}

// Active reports whether the local side is in a typing burst.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Remote reports whether a peer is typing.
func (c *Coordinator) Remote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Coordinator) payloadLocked() chat.Typing {
	return chat.Typing{ChatID: c.chatID, Members: append([]string(nil), c.members...)}
}
