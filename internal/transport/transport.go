// Package transport defines the persistent connection shared by every chat
// session. Implementations decode inbound frames and publish them on the bus
// under the chat. namespace; sessions filter them by chat id.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/protocol"
	"go.uber.org/zap"
)

// ErrOffline is returned by Emit while no connection is established.
var ErrOffline = errors.New("transport offline")

// Transport is a bidirectional event connection.
type Transport interface {
	Start(ctx context.Context) error
	Stop() error
	Emit(ctx context.Context, kind chat.Kind, payload any) error
}

// Dispatch decodes one inbound frame and publishes it. Frames of unknown
// kinds are dropped quietly.
func Dispatch(b *bus.Bus, codec protocol.Codec, data []byte, logger *zap.Logger) {
	evt, err := codec.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			logger.Debug("ignoring frame", zap.String("kind", string(evt.Kind)))
		} else {
			logger.Warn("failed to decode frame", zap.Error(err), zap.Int("bytes", len(data)))
		}
		return
	}
	b.Publish(bus.Inbound(evt))
}

// Backoff bounds the reconnect delays. New turns it into a jittered
// exponential schedule that never gives up.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff is used when a config leaves the bounds unset.
var DefaultBackoff = Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second}

// New returns a fresh schedule starting at Min. Call Reset on it after a
// connection succeeded.
func (b Backoff) New() *backoff.ExponentialBackOff {
	if b.Min <= 0 {
		b.Min = DefaultBackoff.Min
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.Min
	bo.MaxInterval = b.Max
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
