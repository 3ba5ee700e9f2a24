package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/health"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// fakeServer serves both the REST API and the websocket endpoint.
type fakeServer struct {
	srv *httptest.Server

	mu     sync.Mutex
	frames []protocol.Frame
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket", f.socket)
	mux.HandleFunc("/api/v1/chat/c1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chat":{"_id":"c1","name":"Team","groupChat":true,"members":["u1","u2"]}}`))
	})
	mux.HandleFunc("/api/v1/chat/message/c1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"_id":"m1","chat":"c1","sender":{"_id":"u2","name":"Bo"},"content":"hi","createdAt":"2026-01-02T10:00:00Z"}],"totalPages":1}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) socket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var fr protocol.Frame
		if json.Unmarshal(data, &fr) == nil {
			f.mu.Lock()
			f.frames = append(f.frames, fr)
			f.mu.Unlock()
		}
	}
}

func (f *fakeServer) sawFrame(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range f.frames {
		if fr.Type == kind {
			return true
		}
	}
	return false
}

func setupProfile(t *testing.T, f *fakeServer) Params {
	t.Helper()
	// Use a short path to avoid macOS 104-char Unix socket limit.
	home, err := os.MkdirTemp("/tmp", "cs-app-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)

	cfg := config.Defaults()
	cfg.APIURL = f.srv.URL
	cfg.WSURL = "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/socket"
	cfg.UserID = "u1"
	cfg.HTTPRetries = 0
	require.NoError(t, config.Save(profile.ClientConfigPath("t"), cfg))
	return Params{Profile: "t", Quiet: true}
}

func TestModuleGraphIsValid(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module(Params{Profile: "t"})))
}

func TestAppOpensChatEndToEnd(t *testing.T) {
	f := newFakeServer(t)
	p := setupProfile(t, f)

	app, rt := New(p)
	require.NoError(t, app.Err())
	require.NotNil(t, rt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))

	require.Eventually(t, func() bool { return rt.State.Current() == status.Online },
		3*time.Second, 20*time.Millisecond)

	socket := profile.SocketPath(p.Profile)
	require.Eventually(t, func() bool {
		pctx, pcancel := context.WithTimeout(context.Background(), time.Second)
		defer pcancel()
		st, err := health.Probe(pctx, socket)
		return err == nil && st == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, rt.Session.Select(ctx, "c1", "u1"))
	require.Eventually(t, func() bool { return len(rt.Session.View()) == 1 },
		3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return f.sawFrame("joined") },
		3*time.Second, 20*time.Millisecond)

	// The fetched page lands in the local cache.
	require.Eventually(t, func() bool {
		msgs, err := rt.Store.ListMessages("c1", 0, 10)
		return err == nil && len(msgs) == 1
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(ctx))
	// Stopping leaves the open chat.
	require.Eventually(t, func() bool { return f.sawFrame("left") },
		2*time.Second, 20*time.Millisecond)
}

func TestInvalidConfigFailsStartup(t *testing.T) {
	home, err := os.MkdirTemp("/tmp", "cs-app-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)

	// Defaults have no user id.
	app, rt := New(Params{Profile: "bad", Quiet: true})
	require.Error(t, app.Err())
	require.Nil(t, rt)
}
