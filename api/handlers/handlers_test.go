package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/db"
	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/repository"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
)

type staticSession struct {
	info model.SessionInfo
}

func (s staticSession) Info() model.SessionInfo {
	return s.info
}

type dirLocator string

func (d dirLocator) Path(id string) string {
	return filepath.Join(string(d), id+".cast")
}

func setupRouter(t *testing.T, recordings RecordingLocator) (*gin.Engine, *repository.ProjectRepository, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	repo := repository.NewProjectRepository(testDB)
	registry := session.NewRegistry()

	r := gin.New()
	api := r.Group("/api")
	NewProjectHandler(repo, registry, zap.NewNop()).RegisterRoutes(api)
	NewSessionHandler(registry, recordings).RegisterRoutes(api)
	return r, repo, registry
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestProjectHandler(t *testing.T) {
	r, _, registry := setupRouter(t, nil)
	dir := t.TempDir()

	t.Run("create", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/projects", map[string]string{"id": "demo", "path": dir})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "demo", resp.ID)
		assert.Equal(t, filepath.Base(dir), resp.Name)
		assert.Equal(t, dir, resp.Path)
		assert.Equal(t, "/ws/demo", resp.TerminalURL)
	})

	t.Run("create generates an id", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/projects", map[string]string{"name": "anon", "path": dir})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp.ID)
		assert.NoError(t, err)
	})

	t.Run("create rejects duplicates", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/projects", map[string]string{"id": "demo", "path": dir})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "PROJECT_EXISTS", decodeError(t, w))
	})

	t.Run("create rejects bad input", func(t *testing.T) {
		for _, body := range []map[string]string{
			{},
			{"path": filepath.Join(dir, "missing")},
			{"id": "a/b", "path": dir},
		} {
			w := doJSON(r, http.MethodPost, "/api/projects", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w))
		}
	})

	t.Run("get counts live sessions", func(t *testing.T) {
		registry.Add("s1", staticSession{model.SessionInfo{ID: "s1", ProjectID: "demo", StartedAt: time.Now()}})
		defer registry.Remove("s1")

		w := doJSON(r, http.MethodGet, "/api/projects/demo", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.ActiveSessions)
	})

	t.Run("list", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/projects", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp []ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, doJSON(r, http.MethodDelete, "/api/projects/demo", nil).Code)

		w := doJSON(r, http.MethodGet, "/api/projects/demo", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PROJECT_NOT_FOUND", decodeError(t, w))

		assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/api/projects/demo", nil).Code)
	})
}

func TestSessionHandler(t *testing.T) {
	recDir := t.TempDir()
	r, _, registry := setupRouter(t, dirLocator(recDir))

	started := time.Now().Add(-90 * time.Second)
	registry.Add("s1", staticSession{model.SessionInfo{
		ID:          "s1",
		ProjectID:   "demo",
		ProjectPath: "/srv/demo",
		PID:         4242,
		Rows:        24,
		Cols:        80,
		PreviewLine: "$ make test",
		StartedAt:   started,
	}})

	t.Run("list", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sessions", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp []SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "s1", resp[0].ID)
		assert.Equal(t, 4242, resp[0].PID)
		assert.Equal(t, "$ make test", resp[0].PreviewLine)
		assert.Equal(t, "1m30s", resp[0].Duration)
	})

	t.Run("get unknown", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sessions/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w))
	})

	t.Run("recording", func(t *testing.T) {
		id := uuid.New().String()
		cast := `{"version":2,"width":80,"height":24,"timestamp":0}` + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(recDir, id+".cast"), []byte(cast), 0o644))

		w := doJSON(r, http.MethodGet, "/api/sessions/"+id+"/recording", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, cast, w.Body.String())
		assert.Equal(t, "application/x-asciicast", w.Header().Get("Content-Type"))

		w = doJSON(r, http.MethodGet, "/api/sessions/"+uuid.New().String()+"/recording", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doJSON(r, http.MethodGet, "/api/sessions/not-a-uuid/recording", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("recording disabled", func(t *testing.T) {
		r, _, _ := setupRouter(t, nil)
		w := doJSON(r, http.MethodGet, "/api/sessions/"+uuid.New().String()+"/recording", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "RECORDING_DISABLED", decodeError(t, w))
	})
}

var _ ProjectStore = (*repository.ProjectRepository)(nil)
