// Package app composes a running chat client with fx: configuration,
// logging, the transport, the local cache and one chat session.
package app

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/health"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/metrics"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/transport"
	"github.com/matheus3301/chatsync/internal/transport/natsbridge"
	"github.com/matheus3301/chatsync/internal/transport/ws"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string // optional override for testing; empty = use default
	Quiet      bool   // no console logging, for full-screen frontends
}

// Runtime is what frontends drive once the app has started.
type Runtime struct {
	Config  config.Client
	Session *conversation.Session
	Store   *store.DB
	State   *status.Machine
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("chatsync",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTransport,
			provideAPI,
			provideSyncEngine,
			provideSession,
			provideHealth,
			provideMetricsServer,
			newRuntime,
		),
		fx.Invoke(registerLifecycle),
	)
}

// New builds the application. The Runtime is nil when app.Err() is set.
func New(p Params, extra ...fx.Option) (*fx.App, *Runtime) {
	var rt *Runtime
	opts := append([]fx.Option{
		Module(p),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&rt),
	}, extra...)
	return fx.New(opts...), rt
}

func provideConfig(p Params) (config.Client, error) {
	cfg, err := config.LoadClient(profile.ClientConfigPath(p.Profile))
	if err != nil {
		return config.Client{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Client{}, fmt.Errorf("profile %q: %w", p.Profile, err)
	}
	return cfg, nil
}

func provideLogger(p Params, cfg config.Client) (*zap.Logger, error) {
	opts := []logging.Option{logging.WithLevel(cfg.LogLevel)}
	if p.Quiet {
		opts = append(opts, logging.WithoutConsole())
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, opts...)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CachePath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTransport(cfg config.Client, b *bus.Bus, m *status.Machine, logger *zap.Logger) (transport.Transport, error) {
	switch cfg.Transport {
	case "nats":
		nc := natsbridge.DefaultConfig()
		nc.URL = cfg.NATSURL
		nc.UserID = cfg.UserID
		nc.Codec = cfg.NATSCodec
		nc.Token = cfg.AuthToken
		return natsbridge.New(nc, b, m, logger.Named("nats"))
	default:
		return ws.New(ws.Config{
			URL:    cfg.WSURL,
			Token:  cfg.AuthToken,
			UserID: cfg.UserID,
		}, b, m, logger.Named("ws")), nil
	}
}

func provideAPI(cfg config.Client, logger *zap.Logger) (*api.Client, error) {
	return api.New(cfg.APIURL, api.Options{
		Token:    cfg.AuthToken,
		RetryMax: cfg.HTTPRetries,
	}, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"))
}

func provideSession(cfg config.Client, b *bus.Bus, tr transport.Transport, client *api.Client, db *store.DB, logger *zap.Logger) *conversation.Session {
	return conversation.New(b, tr, client, logger.Named("session"),
		conversation.WithMetadata(client),
		conversation.WithMarkers(db),
		conversation.WithTypingWindow(cfg.Window()),
		conversation.WithPageSize(cfg.PageSize),
	)
}

func provideHealth(p Params, b *bus.Bus, logger *zap.Logger) (*health.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.Profile)
	}
	return health.NewServer(socketPath, b, logger)
}

func newRuntime(cfg config.Client, s *conversation.Session, db *store.DB, m *status.Machine, b *bus.Bus, logger *zap.Logger) *Runtime {
	return &Runtime{Config: cfg, Session: s, Store: db, State: m, Bus: b, Logger: logger}
}

func registerLifecycle(lc fx.Lifecycle, srv *health.Server, ms *metricsServer, lk *lock.Lock, db *store.DB, tr transport.Transport, engine *intsync.Engine, session *conversation.Session, b *bus.Bus, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := metrics.RegisterDropCounter(b.Dropped); err != nil {
				logger.Warn("bus drop counter not registered", zap.Error(err))
			}

			// Start sync engine (subscribes to chat.* and session.* bus events).
			engine.Start(runCtx)
			session.Start(runCtx)

			go func() {
				if err := srv.Start(runCtx); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			ms.Start()

			if err := tr.Start(runCtx); err != nil {
				cancel()
				return fmt.Errorf("start transport: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// The session leaves its chat through the transport, so it stops first.
			session.Stop()
			if err := tr.Stop(); err != nil {
				logger.Warn("error stopping transport", zap.Error(err))
			}
			engine.Stop()
			cancel()
			ms.Stop(ctx)
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
