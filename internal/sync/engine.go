// Package sync mirrors what the sessions see into the local store: live
// messages, merged history pages and per-chat unread-alert markers.
package sync

import (
	"context"
	"strings"
	gosync "sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
)

// Engine handles idempotent ingestion of messages into the store.
// It consumes "chat." and "session." events from the bus.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	rec    *Reconciler
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu   gosync.Mutex
	open map[string]int // chat id -> sessions holding it open
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		rec:    NewReconciler(db, logger),
		logger: logger,
		open:   make(map[string]int),
	}
}

// Start subscribes to the whole bus so chat and session events are handled
// in the order they were published.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	events, unsub := e.bus.SubscribeQueued("")
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-events:
				switch {
				case strings.HasPrefix(evt.Kind, bus.NamespaceSession):
					e.handleSession(evt)
				case strings.HasPrefix(evt.Kind, bus.NamespaceChat):
					e.handleChat(evt)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// IsOpen reports whether some session currently shows chatID.
func (e *Engine) IsOpen(chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open[chatID] > 0
}

func (e *Engine) handleSession(evt bus.Event) {
	switch evt.Kind {
	case bus.KindSessionOpened:
		id, _ := evt.Payload.(string)
		e.mu.Lock()
		e.open[id]++
		e.mu.Unlock()
		if err := e.rec.UpdateCheckpoint(CheckpointLastChat, id); err != nil {
			e.logger.Warn("failed to record last chat", zap.Error(err))
		}
	case bus.KindSessionClosed:
		id, _ := evt.Payload.(string)
		e.mu.Lock()
		if e.open[id] > 1 {
			e.open[id]--
		} else {
			delete(e.open, id)
		}
		e.mu.Unlock()
	case bus.KindSessionPage:
		hp, ok := evt.Payload.(bus.HistoryPage)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(hp.ChatID, hp.Messages); err != nil {
			e.logger.Error("failed to ingest history page", zap.Error(err),
				zap.String("chat_id", hp.ChatID), zap.Int("page", hp.Page))
		}
	}
}

func (e *Engine) handleChat(evt bus.Event) {
	ce, ok := evt.Payload.(chat.Event)
	if !ok || ce.ChatID == "" {
		return
	}
	switch ce.Kind {
	case chat.KindNewMessage:
		if ce.Message == nil {
			return
		}
		if err := e.IngestMessage(*ce.Message); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", ce.Message.ID))
			return
		}
		e.markUnread(ce.ChatID)
	case chat.KindAlert:
		e.markUnread(ce.ChatID)
	}
}

func (e *Engine) markUnread(chatID string) {
	if e.IsOpen(chatID) {
		return
	}
	if err := e.db.IncrementUnread(chatID); err != nil {
		e.logger.Error("failed to mark unread", zap.Error(err), zap.String("chat_id", chatID))
		return
	}
	e.published(chatID)
}

// IngestMessage processes a single live message into the store (idempotent).
func (e *Engine) IngestMessage(m chat.Message) error {
	if m.ChatID == "" {
		return nil
	}
	if err := e.db.UpsertMessage(m); err != nil {
		return err
	}
	e.published(m.ChatID)
	return nil
}

// IngestHistoryBatch stores one merged history page in a transaction.
func (e *Engine) IngestHistoryBatch(chatID string, msgs []chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		batch = append(batch, m)
	}
	if err := e.db.UpsertMessages(batch); err != nil {
		return err
	}
	e.logger.Debug("history page ingested", zap.String("chat_id", chatID), zap.Int("messages", len(batch)))
	e.published(chatID)
	return nil
}

func (e *Engine) published(chatID string) {
	e.bus.Publish(bus.Event{
		Kind:      bus.KindStoreUpdated,
		Timestamp: time.Now(),
		Payload:   chatID,
	})
}
