// Package conversation owns the lifecycle of the chat the user is looking at.
// A Session merges paged history with the live event stream into one ordered
// view and drives the outbound joined/left, typing and new-message signals.
//
// Every mutation runs on the session's event loop, started with Start. Page
// fetches run on their own goroutine and post their result back to the loop,
// where a result for a closed or switched chat is discarded. Outbound signals
// are queued to a writer goroutine in loop order, so the loop never waits on
// the transport.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/history"
	"github.com/matheus3301/chatsync/internal/live"
	"github.com/matheus3301/chatsync/internal/metrics"
	"github.com/matheus3301/chatsync/internal/typing"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	emitTimeout     = 5 * time.Second
	opsBuffer       = 64
)

// Emitter sends a signal over the shared transport.
type Emitter interface {
	Emit(ctx context.Context, kind chat.Kind, payload any) error
}

// MetadataFetcher loads chat details for Select.
type MetadataFetcher interface {
	FetchChat(ctx context.Context, chatID string) (chat.Details, error)
}

// Markers clears the unread-alert marker of a chat when it is opened.
type Markers interface {
	ClearUnread(chatID string) error
}

// Session is the single entry point for UI actions and inbound events of the
// open chat. At most one chat is open per Session.
type Session struct {
	bus     *bus.Bus
	pages   history.Fetcher
	meta    MetadataFetcher
	markers Markers
	clock   clock.Clock
	logger  *zap.Logger

	pageSize int
	window   time.Duration

	ops    chan func()
	out    *writer
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once

	// Guarded by mu; written only on the loop.
	mu          sync.RWMutex
	chatID      string
	selfID      string
	members     []string
	composition string
	history     *history.Paginator
	live        *live.Buffer

	typing *typing.Coordinator

	// Loop-owned.
	epoch       uint64
	fetchCancel context.CancelFunc
	chatCh      <-chan bus.Event
	connCh      <-chan bus.Event
	unsubChat   func()
	unsubConn   func()

	selectSeq atomic.Uint64

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// Option configures a Session.
type Option func(*Session)

// WithMetadata enables Select.
func WithMetadata(m MetadataFetcher) Option {
	return func(s *Session) { s.meta = m }
}

// WithMarkers clears unread-alert markers on open.
func WithMarkers(m Markers) Option {
	return func(s *Session) { s.markers = m }
}

// WithClock overrides the clock used for alerts and the typing timer.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithTypingWindow overrides the 2s typing inactivity window.
func WithTypingWindow(d time.Duration) Option {
	return func(s *Session) { s.window = d }
}

// WithPageSize sets the server page size used to detect the top of history.
func WithPageSize(n int) Option {
	return func(s *Session) { s.pageSize = n }
}

// New creates a session bound to the shared bus and transport.
func New(b *bus.Bus, tr Emitter, pages history.Fetcher, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		bus:       b,
		pages:     pages,
		clock:     clock.New(),
		logger:    logger,
		pageSize:  defaultPageSize,
		window:    typing.DefaultWindow,
		ops:       make(chan func(), opsBuffer),
		done:      make(chan struct{}),
		observers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.out = newWriter(tr, logger, emitTimeout)
	s.history = history.New(s.pageSize)
	s.live = live.NewBuffer()
	s.typing = typing.New(s.emitTyping,
		typing.WithClock(s.clock),
		typing.WithWindow(s.window),
		typing.WithDispatcher(s.post),
	)
	return s
}

// Start runs the event loop until ctx is cancelled or Stop is called.
// Methods other than View, State and Subscribe block until Start was called.
func (s *Session) Start(ctx context.Context) {
	s.start.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		go s.out.run()
		go s.run()
	})
}

// Stop closes the open chat, stops the event loop and waits for queued
// signals, including the final left, to be written.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.out.close()
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.ops:
			fn()
		case evt := <-s.chatCh:
			if ce, ok := evt.Payload.(chat.Event); ok {
				s.onIncoming(ce)
			}
		case evt := <-s.connCh:
			s.onConn(evt)
		case <-s.ctx.Done():
			s.close()
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func() error) error {
	result := make(chan error, 1)
	op := func() { result <- fn() }
	select {
	case s.ops <- op:
	case <-s.done:
		return context.Canceled
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return context.Canceled
	}
}

// post queues fn on the loop without waiting.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// Open starts a session for chatID, closing any chat that was open.
func (s *Session) Open(chatID, selfUserID string, memberIDs []string) error {
	if strings.TrimSpace(chatID) == "" {
		return &chat.InvalidChatError{ChatID: chatID}
	}
	s.selectSeq.Add(1)
	return s.do(func() error {
		s.open(chatID, selfUserID, memberIDs)
		return nil
	})
}

// Select fetches the chat's members and opens it. A metadata failure is
// reported as chat.ErrSessionUnavailable and to observers as
// ChangeUnavailable. A result that resolves after a later Select, Open or
// Close is dropped.
func (s *Session) Select(ctx context.Context, chatID, selfUserID string) error {
	if strings.TrimSpace(chatID) == "" {
		return &chat.InvalidChatError{ChatID: chatID}
	}
	if s.meta == nil {
		return errors.New("select: no metadata fetcher configured")
	}
	seq := s.selectSeq.Add(1)

	details, err := s.meta.FetchChat(ctx, chatID)
	if seq != s.selectSeq.Load() {
		s.logger.Debug("discarding chat metadata", zap.String("chat_id", chatID), zap.Error(chat.ErrStaleResult))
		return nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", chat.ErrSessionUnavailable, err)
		s.logger.Warn("chat metadata unavailable", zap.String("chat_id", chatID), zap.Error(err))
		_ = s.do(func() error {
			s.notify(Change{Kind: ChangeUnavailable, ChatID: chatID, Err: err})
			return nil
		})
		return err
	}

	return s.do(func() error {
		if seq != s.selectSeq.Load() {
			return nil
		}
		s.open(chatID, selfUserID, details.Members)
		return nil
	})
}

// Close leaves the open chat. It is idempotent.
func (s *Session) Close() {
	s.selectSeq.Add(1)
	_ = s.do(func() error {
		s.close()
		return nil
	})
}

// Send emits text as a new message. Blank text is ignored. The message is
// not appended locally; it shows up when the transport echoes it back.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := chat.ValidateText(text); err != nil {
		return err
	}
	var (
		chatID string
		result = make(chan error, 1)
	)
	err := s.do(func() error {
		if s.chatID == "" {
			return chat.ErrNoActiveChat
		}
		chatID = s.chatID
		payload := chat.Outgoing{ChatID: s.chatID, Text: text, Members: s.copyMembers()}
		if !s.out.push(outbound{ctx: ctx, kind: chat.KindNewMessage, payload: payload, result: result}) {
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := <-result; err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	metrics.Messages.WithLabelValues("sent").Inc()

	// TODO: optimistic append; the sent text shows up only once the server echoes it.
	return s.do(func() error {
		if s.chatID != chatID {
			return nil
		}
		s.mu.Lock()
		s.composition = ""
		s.mu.Unlock()
		s.notify(Change{Kind: ChangeCompositionChanged, ChatID: chatID})
		return nil
	})
}

// Edit replaces the composition buffer and counts as typing activity.
func (s *Session) Edit(text string) {
	_ = s.do(func() error {
		if s.chatID == "" {
			return nil
		}
		s.mu.Lock()
		s.composition = text
		s.mu.Unlock()
		s.typing.Touch()
		s.notify(Change{Kind: ChangeCompositionChanged, ChatID: s.chatID})
		return nil
	})
}

// OnIncoming applies an inbound event. Inbound events published on the bus
// reach the session without calling this.
func (s *Session) OnIncoming(evt chat.Event) {
	_ = s.do(func() error {
		s.onIncoming(evt)
		return nil
	})
}

// RequestNextPage asks for the next older history page. It is dropped while
// a fetch is pending or once the top of history was reached.
func (s *Session) RequestNextPage() {
	_ = s.do(func() error {
		s.requestNextPage()
		return nil
	})
}

// View returns history followed by live items.
func (s *Session) View() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, 0, s.history.Len()+s.live.Len())
	out = append(out, s.history.Messages()...)
	return append(out, s.live.Items()...)
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.RLock()
	st := State{
		ChatID:           s.chatID,
		SelfUserID:       s.selfID,
		Members:          append([]string(nil), s.members...),
		HistoryPage:      s.history.Page(),
		TotalPages:       s.history.TotalPages(),
		HistoryExhausted: s.history.Exhausted(),
		Loading:          s.history.InFlight(),
		History:          s.history.Messages(),
		Live:             s.live.Items(),
		Composition:      s.composition,
	}
	s.mu.RUnlock()
	st.LocalTyping = s.typing.Active()
	st.RemoteTyping = s.typing.Remote()
	return st
}

func (s *Session) open(chatID, selfID string, members []string) {
	if s.chatID != "" {
		s.close()
	}
	s.epoch++

	s.mu.Lock()
	s.chatID = chatID
	s.selfID = selfID
	s.members = append([]string(nil), members...)
	s.composition = ""
	s.history.Reset()
	s.live.Clear()
	s.mu.Unlock()

	s.typing.Bind(chatID, members)
	s.chatCh, s.unsubChat = s.bus.SubscribeQueued(bus.NamespaceChat)
	s.connCh, s.unsubConn = s.bus.Subscribe(bus.NamespaceConn, 16)

	s.emit(chat.KindJoined, chat.Membership{UserID: selfID, Members: s.copyMembers()})
	if s.markers != nil {
		if err := s.markers.ClearUnread(chatID); err != nil {
			s.logger.Warn("failed to clear unread marker", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	metrics.SessionsOpened.Inc()
	metrics.LiveItems.Set(0)
	s.logger.Info("chat opened", zap.String("chat_id", chatID), zap.Int("members", len(members)))
	s.bus.Publish(bus.Event{Kind: bus.KindSessionOpened, Timestamp: s.clock.Now(), Payload: chatID})
	s.notify(Change{Kind: ChangeOpened, ChatID: chatID})

	s.requestNextPage()
}

func (s *Session) close() {
	if s.chatID == "" && s.unsubChat == nil {
		return
	}
	chatID := s.chatID

	if chatID != "" {
		s.emit(chat.KindLeft, chat.Membership{UserID: s.selfID, Members: s.copyMembers()})
	}
	s.typing.Reset()
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	if s.unsubChat != nil {
		s.unsubChat()
		s.unsubConn()
	}
	s.unsubChat, s.unsubConn = nil, nil
	s.chatCh, s.connCh = nil, nil
	s.epoch++

	s.mu.Lock()
	s.chatID = ""
	s.selfID = ""
	s.members = nil
	s.composition = ""
	s.history.Reset()
	s.live.Clear()
	s.mu.Unlock()

	metrics.LiveItems.Set(0)
	s.logger.Info("chat closed", zap.String("chat_id", chatID))
	s.bus.Publish(bus.Event{Kind: bus.KindSessionClosed, Timestamp: s.clock.Now(), Payload: chatID})
	s.notify(Change{Kind: ChangeClosed, ChatID: chatID})
}

func (s *Session) requestNextPage() {
	if s.chatID == "" {
		return
	}
	s.mu.Lock()
	page, ok := s.history.Begin()
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.fetchCancel = cancel
	epoch, chatID := s.epoch, s.chatID
	started := s.clock.Now()

	go func() {
		res, err := s.pages.FetchPage(ctx, chatID, page)
		metrics.PageLatency.Observe(s.clock.Since(started).Seconds())
		s.post(func() { s.applyPage(epoch, chatID, page, res, err) })
	}()
	s.notify(Change{Kind: ChangePageRequested, ChatID: chatID})
}

func (s *Session) applyPage(epoch uint64, chatID string, page int, res chat.Page, err error) {
	if epoch != s.epoch || chatID != s.chatID {
		metrics.HistoryPages.WithLabelValues("stale").Inc()
		s.logger.Debug("discarding history page",
			zap.String("chat_id", chatID), zap.Int("page", page), zap.Error(chat.ErrStaleResult))
		return
	}
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}

	if err != nil {
		s.mu.Lock()
		s.history.Fail(page)
		s.mu.Unlock()
		metrics.HistoryPages.WithLabelValues("failed").Inc()
		s.logger.Warn("history page fetch failed", zap.String("chat_id", chatID), zap.Int("page", page), zap.Error(err))
		s.notify(Change{Kind: ChangePageFailed, ChatID: chatID, Err: err})
		return
	}

	s.mu.Lock()
	added, err := s.history.Apply(page, res, s.live.Contains)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("history page rejected", zap.String("chat_id", chatID), zap.Error(err))
		return
	}

	metrics.HistoryPages.WithLabelValues("applied").Inc()
	s.logger.Debug("history page applied",
		zap.String("chat_id", chatID), zap.Int("page", page), zap.Int("added", added))
	s.bus.Publish(bus.Event{
		Kind:      bus.KindSessionPage,
		Timestamp: s.clock.Now(),
		Payload:   bus.HistoryPage{ChatID: chatID, Page: page, Messages: res.Messages},
	})
	s.notify(Change{Kind: ChangeHistoryPrepended, ChatID: chatID, Prepended: added})
}

func (s *Session) onIncoming(evt chat.Event) {
	if s.chatID == "" || evt.ChatID != s.chatID {
		return
	}
	switch evt.Kind {
	case chat.KindNewMessage:
		if evt.Message == nil {
			return
		}
		msg := *evt.Message
		if msg.ChatID == "" {
			msg.ChatID = evt.ChatID
		}
		if !s.appendLive(msg) {
			return
		}
		metrics.Messages.WithLabelValues("received").Inc()
	case chat.KindAlert:
		s.appendLive(chat.NewSystemAlert(s.chatID, evt.Alert, s.clock.Now()))
	case chat.KindTypingStart, chat.KindTypingStop:
		if s.typing.SetRemote(evt.ChatID, evt.Kind == chat.KindTypingStart) {
			s.notify(Change{Kind: ChangeTypingChanged, ChatID: s.chatID})
		}
	default:
		s.logger.Debug("ignoring event", zap.String("kind", string(evt.Kind)))
	}
}

// appendLive adds msg to the live buffer unless history already holds it.
func (s *Session) appendLive(msg chat.Message) bool {
	s.mu.Lock()
	if s.history.Contains(msg.ID) {
		s.mu.Unlock()
		return false
	}
	s.live.Append(msg)
	n := s.live.Len()
	s.mu.Unlock()

	metrics.LiveItems.Set(float64(n))
	s.notify(Change{Kind: ChangeLiveAppended, ChatID: s.chatID})
	return true
}

// onConn re-joins the open chat after the transport reconnects.
func (s *Session) onConn(evt bus.Event) {
	if evt.Kind != bus.KindConnOnline || s.chatID == "" {
		return
	}
	s.logger.Info("transport back online, rejoining", zap.String("chat_id", s.chatID))
	s.emit(chat.KindJoined, chat.Membership{UserID: s.selfID, Members: s.copyMembers()})
}

func (s *Session) emitTyping(kind chat.Kind, payload chat.Typing) {
	metrics.TypingSignals.WithLabelValues(string(kind)).Inc()
	s.emit(kind, payload)
	s.notify(Change{Kind: ChangeTypingChanged, ChatID: payload.ChatID})
}

// emit queues a signal. Failures are logged by the writer; only new-message
// surfaces its error.
func (s *Session) emit(kind chat.Kind, payload any) {
	s.out.push(outbound{kind: kind, payload: payload})
}

func (s *Session) copyMembers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.members...)
}
