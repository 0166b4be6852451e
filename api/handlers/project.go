package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
)

// ProjectStore is the persistence the project API needs.
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]*model.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectHandler handles HTTP requests for project management.
type ProjectHandler struct {
	store    ProjectStore
	sessions *session.Registry
	logger   *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(store ProjectStore, sessions *session.Registry, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Path           string `json:"path"`
	ActiveSessions int    `json:"activeSessions"`
	TerminalURL    string `json:"terminalUrl"`
	CreatedAt      string `json:"createdAt"`
}

func (h *ProjectHandler) toResponse(p *model.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:             p.ID,
		Name:           p.Name,
		Path:           p.Path,
		ActiveSessions: h.sessions.CountForProject(p.ID),
		TerminalURL:    "/ws/" + p.ID,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/projects - registers a working directory.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	project := &model.Project{
		ID:        req.ID,
		Name:      req.Name,
		Path:      req.Path,
		CreatedAt: time.Now().UTC(),
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Name == "" {
		project.Name = filepath.Base(project.Path)
	}

	if err := h.store.Create(c.Request.Context(), project); err != nil {
		if errors.Is(err, model.ErrProjectExists) {
			sendError(c, http.StatusConflict, "PROJECT_EXISTS", "Project "+project.ID+" already exists")
			return
		}
		h.logger.Error("failed to create project", zap.Error(err))
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project")
		return
	}

	h.logger.Info("project registered", zap.String("project_id", project.ID), zap.String("path", project.Path))
	c.JSON(http.StatusCreated, h.toResponse(project))
}

// List handles GET /api/projects - lists all projects.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects")
		return
	}

	response := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		response[i] = h.toResponse(p)
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/projects/:id - gets a specific project.
func (h *ProjectHandler) Get(c *gin.Context) {
	id := c.Param("id")

	project, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrProjectNotFound) {
			sendError(c, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project "+id+" not found")
			return
		}
		h.logger.Error("failed to get project", zap.String("project_id", id), zap.Error(err))
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get project")
		return
	}

	c.JSON(http.StatusOK, h.toResponse(project))
}

// Delete handles DELETE /api/projects/:id - removes a project. Sessions
// already running in it are not affected.
func (h *ProjectHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, model.ErrProjectNotFound) {
			sendError(c, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project "+id+" not found")
			return
		}
		h.logger.Error("failed to delete project", zap.String("project_id", id), zap.Error(err))
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete project")
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the project handler routes on a Gin router group.
func (h *ProjectHandler) RegisterRoutes(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	{
		projects.POST("", h.Create)
		projects.GET("", h.List)
		projects.GET("/:id", h.Get)
		projects.DELETE("/:id", h.Delete)
	}
}
