package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/server/metrics"
	"github.com/iudanet/codesync/internal/server/middleware"
	"github.com/iudanet/codesync/internal/server/session"
	"github.com/iudanet/codesync/internal/server/storage/sqlite"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type testServer struct {
	srv      *httptest.Server
	manager  *session.Manager
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	wsPrefix string
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.SweepInterval = 10 * time.Millisecond

	m := metrics.New(nil)
	manager := session.NewManager(cfg, nil, m, setupTestLogger())

	srv := httptest.NewServer(NewRouter(Deps{
		Logger:    setupTestLogger(),
		Sessions:  manager,
		Snapshots: manager,
		Metrics:   m,
		Limiter:   limiter,
		Version:   "test",
	}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, manager.Shutdown(ctx))
		srv.Close()
		if limiter != nil {
			limiter.Stop()
		}
	})

	return &testServer{
		srv:      srv,
		manager:  manager,
		metrics:  m,
		limiter:  limiter,
		wsPrefix: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := http.Get(s.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func (s *testServer) dial(t *testing.T, ctx context.Context, projectID string) transport.Conn {
	t.Helper()

	dialer := &transport.WebSocketDialer{
		URL:    s.wsPrefix + "/api/collaboration/" + projectID,
		Logger: setupTestLogger(),
	}
	conn, err := dialer.Dial(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, 0, health.Sessions)
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown route", path: "/nope", wantStatus: http.StatusNotFound},
		{name: "no session", path: "/api/v1/projects/demo", wantStatus: http.StatusNotFound},
		{name: "plain http connect", path: "/api/collaboration/demo", wantStatus: http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.get(t, tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRouter_CollaborationSession(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := s.dial(t, ctx, "demo")
	require.NoError(t, conn.Send(ctx, api.NewHello(api.Hello{ReplicaID: "alice"})))

	msg, err := conn.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, api.TypeSyncStep, msg.Type)
	assert.NotEmpty(t, msg.SyncStep.Epoch)

	require.NoError(t, conn.Send(ctx, api.NewSyncReply(api.SyncReply{})))

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.srv.URL + "/api/v1/projects/demo")
		if err != nil {
			return false
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		var stats api.ProjectStats
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&stats) != nil {
			return false
		}
		return len(stats.Peers) == 1 && stats.Peers[0].State == "live" && stats.Epoch == msg.SyncStep.Epoch
	}, 2*time.Second, 10*time.Millisecond)

	resp := s.get(t, "/health")
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, 1, health.Sessions)

	metricsResp := s.get(t, "/metrics")
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "codesync_connected_peers 1")
	assert.Contains(t, string(body), `codesync_messages_received_total{type="hello"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(0, 1, time.Minute, setupTestLogger())
	s := newTestServer(t, limiter)

	first := s.get(t, "/api/collaboration/demo")
	assert.Equal(t, http.StatusUpgradeRequired, first.StatusCode)

	second := s.get(t, "/api/collaboration/demo")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// Остальные маршруты не ограничены
	health := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRouter_Snapshots(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	cfg := session.DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond
	manager := session.NewManager(cfg, store, nil, setupTestLogger())
	srv := httptest.NewServer(NewRouter(Deps{
		Logger:    setupTestLogger(),
		Sessions:  manager,
		Snapshots: manager,
	}))
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		require.NoError(t, manager.Shutdown(shutdownCtx))
		srv.Close()
	})
	s := &testServer{srv: srv, manager: manager, wsPrefix: "ws" + strings.TrimPrefix(srv.URL, "http")}

	conn := s.dial(t, ctx, "demo")
	require.NoError(t, conn.Send(ctx, api.NewHello(api.Hello{ReplicaID: "alice"})))
	_, err = conn.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Send(ctx, api.NewSyncReply(api.SyncReply{})))

	ops := []models.Operation{{
		ID:      models.OpID{Replica: "alice", Clock: 1},
		Type:    models.OpInsert,
		Content: "a",
	}}
	require.NoError(t, conn.Send(ctx, api.NewUpdate("notes.txt", models.KindText, ops)))

	require.Eventually(t, func() bool {
		stats, err := manager.Stats(ctx, "demo")
		return err == nil && len(stats.Documents) == 1 && stats.Documents[0].Operations == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Снимок активной сессии не удаляется
	assert.Equal(t, http.StatusConflict, s.delete(t, "/api/v1/projects/demo/snapshot").StatusCode)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(manager.Sessions()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	resp := s.get(t, "/api/v1/snapshots")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list api.SnapshotList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, []string{"demo"}, list.Projects)

	assert.Equal(t, http.StatusNoContent, s.delete(t, "/api/v1/projects/demo/snapshot").StatusCode)
	assert.Equal(t, http.StatusNotFound, s.delete(t, "/api/v1/projects/demo/snapshot").StatusCode)
}

func TestRouter_SnapshotsWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/api/v1/snapshots")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp = s.delete(t, "/api/v1/projects/demo/snapshot")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func (s *testServer) delete(t *testing.T, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, s.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}
