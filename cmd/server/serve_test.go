//go:build !windows

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/config"
	"github.com/remote-agent-terminal/shellbridge/internal/db"
	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/monitoring"
	"github.com/remote-agent-terminal/shellbridge/internal/repository"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
	"github.com/remote-agent-terminal/shellbridge/internal/ws"
)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *server, *repository.ProjectRepository) {
	t.Helper()
	t.Setenv("SHELL", "/bin/sh")

	testDB, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	reg := prometheus.NewRegistry()
	repo := repository.NewProjectRepository(testDB)
	srv := newServer(cfg, zap.NewNop(), serverDeps{
		projects: repo,
		registry: session.NewRegistry(),
		metrics:  monitoring.NewMetrics(reg),
		gatherer: reg,
	})

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(func() {
		srv.cancelSessions()
		srv.waitForSessions(context.Background())
		ts.Close()
	})
	return ts, srv, repo
}

func addProject(t *testing.T, repo *repository.ProjectRepository, id string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &model.Project{
		ID: id, Name: id, Path: dir, CreatedAt: time.Now(),
	}))
	return dir
}

func TestServerRoutes(t *testing.T) {
	ts, _, _ := newTestServer(t, config.Default())

	for _, path := range []string{"/health", "/metrics", "/api/projects", "/api/sessions"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestServerTerminalRoutes(t *testing.T) {
	ts, srv, repo := newTestServer(t, config.Default())
	dir := addProject(t, repo, "demo")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	for _, path := range []string{"/ws/demo", "/api/projects/demo/terminal"} {
		t.Run(path, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL+path, nil)
			require.NoError(t, err)
			resp.Body.Close()
			defer conn.Close()

			require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, ws.EncodeData([]byte("pwd\n"))))

			var out strings.Builder
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			for !strings.Contains(out.String(), dir+"\r\n") {
				_, msg, err := conn.ReadMessage()
				require.NoError(t, err, "output so far: %q", out.String())
				if len(msg) > 0 && ws.Tag(msg[0]) == ws.TagData {
					out.Write(msg[1:])
				}
			}
			assert.GreaterOrEqual(t, srv.registry.Count(), 1)
		})
	}
}

func TestServerRateLimitsUpgrades(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1
	ts, _, _ := newTestServer(t, cfg)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/missing", nil)
	require.Error(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"/ws/missing", nil)
	require.Error(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// The REST API is not limited.
	for i := 0; i < 3; i++ {
		r, err := http.Get(ts.URL + "/api/projects")
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusOK, r.StatusCode)
	}
}

func TestServerShutdownEndsSessions(t *testing.T) {
	ts, srv, repo := newTestServer(t, config.Default())
	addProject(t, repo, "demo")

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/demo", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.registry.Count() == 1 }, 10*time.Second, 10*time.Millisecond)

	srv.cancelSessions()
	srv.waitForSessions(context.Background())
	assert.Zero(t, srv.registry.Count())

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
