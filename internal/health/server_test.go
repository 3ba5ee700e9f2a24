package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func shortSocket(t *testing.T) string {
	t.Helper()
	// Use a short path to avoid macOS 104-char Unix socket limit.
	dir, err := os.MkdirTemp("/tmp", "cs-health-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func probe(socket string) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := Probe(ctx, socket)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return st
}

func TestHealthFollowsTransportState(t *testing.T) {
	socket := shortSocket(t)
	b := bus.New()
	machine := status.NewMachine(b)

	srv, err := NewServer(socket, b, zap.NewNop())
	require.NoError(t, err)
	go func() { _ = srv.Start(context.Background()) }()
	defer srv.Stop(context.Background())

	require.Eventually(t, func() bool {
		return probe(socket) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, machine.Transition(status.Connecting))
	require.NoError(t, machine.Transition(status.Online))
	require.Eventually(t, func() bool {
		return probe(socket) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, machine.Transition(status.Reconnecting))
	require.Eventually(t, func() bool {
		return probe(socket) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopRemovesSocket(t *testing.T) {
	socket := shortSocket(t)
	srv, err := NewServer(socket, bus.New(), nil)
	require.NoError(t, err)
	go func() { _ = srv.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return probe(socket) != healthpb.HealthCheckResponse_UNKNOWN
	}, 2*time.Second, 20*time.Millisecond)

	srv.Stop(context.Background())
	_, err = os.Stat(socket)
	require.True(t, os.IsNotExist(err), "socket should be removed")
}

func TestProbeWithoutServerFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := Probe(ctx, shortSocket(t))
	require.Error(t, err)
}
