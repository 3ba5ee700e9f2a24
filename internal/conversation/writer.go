package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"go.uber.org/zap"
)

// outbound is one queued signal. A nil kind is a barrier: it is answered
// once everything queued before it was written.
type outbound struct {
	ctx     context.Context
	kind    chat.Kind
	payload any
	result  chan error
}

// writer sends the session's signals in the order the loop queued them, so a
// slow transport never holds up inbound events.
type writer struct {
	tr      Emitter
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending []outbound
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newWriter(tr Emitter, logger *zap.Logger, timeout time.Duration) *writer {
	return &writer{
		tr:      tr,
		logger:  logger,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// push queues o. It reports false once the writer was closed.
func (w *writer) push(o outbound) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = append(w.pending, o)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// flush waits until every signal queued so far was written.
func (w *writer) flush() {
	result := make(chan error, 1)
	if !w.push(outbound{result: result}) {
		return
	}
	<-result
}

func (w *writer) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		closed := w.closed
		w.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-w.wake
			continue
		}
		for _, o := range batch {
			w.write(o)
		}
	}
}

func (w *writer) write(o outbound) {
	if o.kind == "" {
		o.result <- nil
		return
	}
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.tr.Emit(ctx, o.kind, o.payload)
	cancel()

	if o.result != nil {
		o.result <- err
		return
	}
	if err != nil {
		w.logger.Warn("failed to emit signal", zap.String("kind", string(o.kind)), zap.Error(err))
	}
}

// close stops accepting signals, drains what is queued and waits for the
// writer to exit.
func (w *writer) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
	<-w.done
}
