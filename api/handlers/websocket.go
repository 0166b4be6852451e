package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/remote-agent-terminal/shellbridge/internal/ws"
)

// TerminalHandler serves terminal WebSocket connections.
type TerminalHandler struct {
	acceptor *ws.Acceptor
}

// NewTerminalHandler creates a new TerminalHandler.
func NewTerminalHandler(acceptor *ws.Acceptor) *TerminalHandler {
	return &TerminalHandler{acceptor: acceptor}
}

// Connect handles WS /ws/*path - the last path segment names the project.
func (h *TerminalHandler) Connect(c *gin.Context) {
	h.acceptor.Handle(c)
}

// Attach handles WS /api/projects/:id/terminal.
func (h *TerminalHandler) Attach(c *gin.Context) {
	h.acceptor.Serve(c, c.Param("id"))
}

// RegisterRoutes registers the terminal routes. middleware runs before
// every upgrade.
func (h *TerminalHandler) RegisterRoutes(r gin.IRoutes, api *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	r.GET("/ws/*path", append(middleware, h.Connect)...)
	api.GET("/projects/:id/terminal", append(middleware, h.Attach)...)
}
