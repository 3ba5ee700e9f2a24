// Package ws is the websocket transport. It keeps one connection to the chat
// server alive, reconnecting with exponential backoff, and publishes decoded
// inbound frames on the bus.
package ws

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/metrics"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds websocket connection settings.
type Config struct {
	URL          string
	Token        string        // sent as a bearer token on the handshake
	UserID       string        // sent as the userId query parameter
	PingInterval time.Duration // keepalive; the read deadline is twice this
	WriteTimeout time.Duration
	Backoff      transport.Backoff
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Backoff.Min <= 0 {
		c.Backoff = transport.DefaultBackoff
	}
	return c
}

// Client is a reconnecting websocket transport.
type Client struct {
	cfg    Config
	codec  protocol.Codec
	bus    *bus.Bus
	state  *status.Machine
	logger *zap.Logger

	writeMu sync.Mutex
	conn    net.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

var _ transport.Transport = (*Client)(nil)

// New creates a websocket transport. It does not connect until Start.
func New(cfg Config, b *bus.Bus, state *status.Machine, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg.withDefaults(),
		codec:  protocol.JSONCodec{},
		bus:    b,
		state:  state,
		logger: logger,
	}
}

// Start connects in the background. Connection failures are retried until
// Stop is called or ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("ws: empty url")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop closes the connection and waits for the background loop to exit.
func (c *Client) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	return nil
}

// Emit writes one frame. It fails with transport.ErrOffline while
// disconnected; nothing is queued.
func (c *Client) Emit(ctx context.Context, kind chat.Kind, payload any) error {
	data, err := c.codec.Encode(kind, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return transport.ErrOffline
	}
	if err := c.writeLocked(ctx, ws.OpText, data); err != nil {
		return fmt.Errorf("ws: write %s: %w", kind, err)
	}
	return nil
}

func (c *Client) writeLocked(ctx context.Context, op ws.OpCode, data []byte) error {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wsutil.WriteClientMessage(c.conn, op, data)
}

func (c *Client) write(op ws.OpCode, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return transport.ErrOffline
	}
	return c.writeLocked(context.Background(), op, data)
}

func (c *Client) setState(s status.State) {
	if c.state == nil {
		return
	}
	if err := c.state.Transition(s); err != nil {
		c.logger.Debug("status transition skipped", zap.Error(err))
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(status.Closed)

	bo := c.cfg.Backoff.New()
	for {
		c.setState(status.Connecting)
		conn, err := c.dial(ctx)
		if err == nil {
			bo.Reset()
			c.logger.Info("websocket connected", zap.String("url", c.cfg.URL))
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		c.setState(status.Reconnecting)
		metrics.Reconnects.Inc()
		delay := bo.NextBackOff()
		c.logger.Warn("websocket disconnected", zap.Error(err), zap.Duration("retry_in", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	d := ws.Dialer{
		Header: ws.HandshakeHeaderHTTP(header),
	}

	target, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if c.cfg.UserID != "" {
		q := target.Query()
		q.Set("userId", c.cfg.UserID)
		target.RawQuery = q.Encode()
	}
	conn, br, _, err := d.Dial(ctx, target.String())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if br != nil {
		// The server wrote frames right after the handshake.
		conn = &bufferedConn{Conn: conn, r: br}
	}
	return conn, nil
}

// serve runs the read and keepalive loops until the connection drops.
func (c *Client) serve(ctx context.Context, conn net.Conn) error {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	c.setState(status.Online)

	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		_ = conn.Close()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(conn) })
	g.Go(func() error { return c.pingLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}

func (c *Client) readLoop(conn net.Conn) error {
	rd := &wsutil.Reader{
		Source:         conn,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	for {
		if err := conn.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval)); err != nil {
			return err
		}
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		transport.Dispatch(c.bus, c.codec, data, c.logger)
	}
}

// handleControl answers pings through the locked writer so pongs never
// interleave with outbound frames.
func (c *Client) handleControl(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch hdr.OpCode {
	case ws.OpPing:
		return c.write(ws.OpPong, payload)
	case ws.OpClose:
		return wsutil.ClosedError{Code: ws.StatusNormalClosure, Reason: "server closed"}
	}
	return nil
}

func (c *Client) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.write(ws.OpPing, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}
