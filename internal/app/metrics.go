package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/metrics"
	"go.uber.org/zap"
)

// metricsServer serves /metrics when metrics_addr is configured.
type metricsServer struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

func provideMetricsServer(cfg config.Client, logger *zap.Logger) *metricsServer {
	ms := &metricsServer{addr: cfg.MetricsAddr, logger: logger}
	if ms.addr == "" {
		return ms
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	ms.srv = &http.Server{
		Addr:              ms.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ms
}

// Start listens in the background. Bind failures are logged, not fatal.
func (m *metricsServer) Start() {
	if m.srv == nil {
		return
	}
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		m.logger.Warn("metrics endpoint disabled", zap.String("addr", m.addr), zap.Error(err))
		m.srv = nil
		return
	}
	m.logger.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

func (m *metricsServer) Stop(ctx context.Context) {
	if m.srv == nil {
		return
	}
	_ = m.srv.Shutdown(ctx)
}
