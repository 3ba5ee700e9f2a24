// Package natsbridge is a transport for deployments where the chat server
// fans events out over NATS instead of holding a websocket per client.
package natsbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/transport"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS subject patterns.
const (
	SubjectUser   = "chatsync.user"   // + .<user_id>, events addressed to one user
	SubjectEvents = "chatsync.events" // + .<kind>, signals sent by clients
)

// Config holds NATS connection settings.
type Config struct {
	URL           string // nats://localhost:4222
	Name          string // client name for identification
	UserID        string
	Codec         string // "json" or "proto"
	Token         string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "chatsync",
		Codec:         "json",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// UserSubject is the subject a user's inbound events arrive on.
func UserSubject(userID string) string {
	return SubjectUser + "." + userID
}

// EventSubject is the subject an outbound signal of kind is published on.
func EventSubject(kind chat.Kind) string {
	return SubjectEvents + "." + string(kind)
}

// Bridge implements transport.Transport over NATS.
type Bridge struct {
	cfg    Config
	codec  protocol.Codec
	bus    *bus.Bus
	state  *status.Machine
	logger *zap.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

var _ transport.Transport = (*Bridge)(nil)

// New creates a bridge. It does not connect until Start.
func New(cfg Config, b *bus.Bus, state *status.Machine, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("natsbridge: user id required")
	}
	codec, err := protocol.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &Bridge{cfg: cfg, codec: codec, bus: b, state: state, logger: logger}, nil
}

// Start connects and subscribes to the user's subject. NATS reconnects on
// its own; publishes are not buffered while it does.
func (b *Bridge) Start(ctx context.Context) error {
	b.setState(status.Connecting)
	opts := []nats.Option{
		nats.Name(b.cfg.Name),
		nats.ReconnectWait(b.cfg.ReconnectWait),
		nats.MaxReconnects(b.cfg.MaxReconnects),
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.logger.Warn("nats disconnected", zap.Error(err))
			b.setState(status.Reconnecting)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			b.setState(status.Connecting)
			b.setState(status.Online)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			b.logger.Info("nats connection closed")
			b.setState(status.Closed)
		}),
	}
	if b.cfg.Token != "" {
		opts = append(opts, nats.Token(b.cfg.Token))
	}

	nc, err := nats.Connect(b.cfg.URL, opts...)
	if err != nil {
		b.setState(status.Closed)
		return fmt.Errorf("nats connect: %w", err)
	}
	subject := UserSubject(b.cfg.UserID)
	sub, err := nc.Subscribe(subject, b.handleMsg)
	if err != nil {
		nc.Close()
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	b.mu.Lock()
	b.conn, b.sub = nc, sub
	b.mu.Unlock()

	b.logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()), zap.String("subject", subject))
	b.setState(status.Online)

	go func() {
		<-ctx.Done()
		_ = b.Stop()
	}()
	return nil
}

// Stop unsubscribes and closes the connection. It is idempotent.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	nc, sub := b.conn, b.sub
	b.conn, b.sub = nil, nil
	b.mu.Unlock()

	if nc == nil {
		return nil
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("nats unsubscribe", zap.Error(err))
		}
	}
	nc.Close()
	return nil
}

// Emit publishes a signal on its event subject.
func (b *Bridge) Emit(_ context.Context, kind chat.Kind, payload any) error {
	b.mu.Lock()
	nc := b.conn
	b.mu.Unlock()
	if nc == nil || !nc.IsConnected() {
		return transport.ErrOffline
	}

	data, err := b.codec.Encode(kind, payload)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(EventSubject(kind))
	msg.Data = data
	msg.Header.Set("User-Id", b.cfg.UserID)
	msg.Header.Set("Codec", b.codec.Name())
	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", kind, err)
	}
	return nil
}

func (b *Bridge) handleMsg(msg *nats.Msg) {
	transport.Dispatch(b.bus, b.codec, msg.Data, b.logger)
}

func (b *Bridge) setState(s status.State) {
	if b.state == nil {
		return
	}
	if err := b.state.Transition(s); err != nil {
		b.logger.Debug("status transition skipped", zap.Error(err))
	}
}
