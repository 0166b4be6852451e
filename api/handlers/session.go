package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
)

// RecordingLocator maps a session ID to its recording file.
type RecordingLocator interface {
	Path(sessionID string) string
}

// SessionHandler handles HTTP requests for live terminal sessions.
type SessionHandler struct {
	registry   *session.Registry
	recordings RecordingLocator
}

// NewSessionHandler creates a new SessionHandler. recordings may be nil
// when sessions are not recorded.
func NewSessionHandler(registry *session.Registry, recordings RecordingLocator) *SessionHandler {
	return &SessionHandler{
		registry:   registry,
		recordings: recordings,
	}
}

// SessionResponse represents a live session in API responses.
type SessionResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	ProjectPath string `json:"projectPath"`
	PID         int    `json:"pid"`
	Rows        uint16 `json:"rows"`
	Cols        uint16 `json:"cols"`
	RemoteAddr  string `json:"remoteAddr,omitempty"`
	PreviewLine string `json:"previewLine,omitempty"`
	Duration    string `json:"duration"`
	StartedAt   string `json:"startedAt"`
}

func toSessionResponse(s model.SessionInfo) *SessionResponse {
	return &SessionResponse{
		ID:          s.ID,
		ProjectID:   s.ProjectID,
		ProjectPath: s.ProjectPath,
		PID:         s.PID,
		Rows:        s.Rows,
		Cols:        s.Cols,
		RemoteAddr:  s.RemoteAddr,
		PreviewLine: s.PreviewLine,
		Duration:    formatDuration(s.Duration()),
		StartedAt:   s.StartedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/sessions - lists live sessions, oldest first.
func (h *SessionHandler) List(c *gin.Context) {
	infos := h.registry.List()

	response := make([]*SessionResponse, len(infos))
	for i, info := range infos {
		response[i] = toSessionResponse(info)
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a live session.
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")

	info, ok := h.registry.Get(id)
	if !ok {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+id+" not found")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(info))
}

// GetRecording handles GET /api/sessions/:id/recording - downloads the
// asciinema recording of a live or finished session.
func (h *SessionHandler) GetRecording(c *gin.Context) {
	id := c.Param("id")
	if h.recordings == nil {
		sendError(c, http.StatusNotFound, "RECORDING_DISABLED", "Session recording is not enabled")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid session ID")
		return
	}

	path := h.recordings.Path(id)
	if _, err := os.Stat(path); err != nil {
		sendError(c, http.StatusNotFound, "RECORDING_NOT_FOUND", "Recording not found for session "+id)
		return
	}

	c.Header("Content-Type", "application/x-asciicast")
	c.Header("Content-Disposition", "attachment; filename="+id+".cast")
	c.File(path)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.GET("/:id/recording", h.GetRecording)
	}
}
