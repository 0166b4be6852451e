package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/monitoring"
	"github.com/remote-agent-terminal/shellbridge/internal/pty"
	"github.com/remote-agent-terminal/shellbridge/internal/recorder"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
)

const (
	// DefaultReadChunkSize is the largest terminal read forwarded as one frame.
	DefaultReadChunkSize = 1024

	// DefaultOutboundQueue is the number of frames buffered per connection
	// before terminal reads block.
	DefaultOutboundQueue = 256

	// DefaultMaxMessageSize bounds one client message. Pastes are far
	// smaller.
	DefaultMaxMessageSize = 8 << 20
)

// ProjectLookup resolves a project reference to a project. Unknown references
// yield model.ErrProjectNotFound.
type ProjectLookup interface {
	Lookup(ctx context.Context, ref string) (*model.Project, error)
}

// Launcher starts a shell for a session.
type Launcher func(opts pty.LaunchOptions) (*pty.Bridge, error)

// Options tunes an Acceptor. Zero values select defaults.
type Options struct {
	ReadChunkSize int
	OutboundQueue int
	InitialSize   pty.Size

	// MaxMessageSize is the largest client message accepted. Larger
	// messages close the connection with 1009.
	MaxMessageSize int

	// Launch defaults to pty.Launch.
	Launch Launcher

	// Recorders defaults to recorder.Nop.
	Recorders recorder.Factory

	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

func (o *Options) setDefaults() {
	if o.ReadChunkSize <= 0 {
		o.ReadChunkSize = DefaultReadChunkSize
	}
	if o.OutboundQueue <= 0 {
		o.OutboundQueue = DefaultOutboundQueue
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.InitialSize == (pty.Size{}) {
		o.InitialSize = pty.DefaultSize()
	}
	if o.Launch == nil {
		o.Launch = pty.Launch
	}
	if o.Recorders == nil {
		o.Recorders = recorder.Nop{}
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
}

// Rejection is the HTTP answer to a handshake that did not resolve to a
// project.
type Rejection struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Message + ": " + r.Err.Error()
	}
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Acceptor turns upgrade requests into terminal sessions.
type Acceptor struct {
	ctx      context.Context
	lookup   ProjectLookup
	registry *session.Registry
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// NewAcceptor creates an Acceptor. Cancelling ctx tears down every session
// the Acceptor started.
func NewAcceptor(ctx context.Context, lookup ProjectLookup, registry *session.Registry, metrics *monitoring.Metrics, logger *zap.Logger, opts Options) *Acceptor {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Acceptor{
		ctx:      ctx,
		lookup:   lookup,
		registry: registry,
		metrics:  metrics,
		logger:   logger.Named("ws"),
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// Resolve maps the request path to a project. The last path segment is the
// project reference.
func (a *Acceptor) Resolve(ctx context.Context, path string) (*model.Project, *Rejection) {
	ref := path[strings.LastIndexByte(path, '/')+1:]

	project, err := a.lookup.Lookup(ctx, ref)
	switch {
	case err == nil:
		return project, nil
	case errors.Is(err, model.ErrProjectNotFound), errors.Is(err, model.ErrInvalidProjectRef):
		return nil, &Rejection{
			Status:  http.StatusNotFound,
			Code:    "PROJECT_NOT_FOUND",
			Message: "Project not found",
			Err:     err,
		}
	default:
		a.logger.Error("project lookup failed", zap.String("ref", ref), zap.Error(err))
		return nil, &Rejection{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL_ERROR",
			Message: "Failed to resolve project",
			Err:     err,
		}
	}
}

// Handle is a gin handler resolving the project from the request path.
func (a *Acceptor) Handle(c *gin.Context) {
	a.Serve(c, c.Request.URL.Path)
}

// Serve resolves path, upgrades the connection and runs a session on it
// until the session ends.
func (a *Acceptor) Serve(c *gin.Context, path string) {
	project, rej := a.Resolve(c.Request.Context(), path)
	if rej != nil {
		a.metrics.RecordHandshake(rej.Status)
		c.AbortWithStatusJSON(rej.Status, gin.H{
			"error": gin.H{
				"code":    rej.Code,
				"message": rej.Message,
			},
		})
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already answered with an HTTP error.
		a.metrics.RecordHandshake(http.StatusBadRequest)
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	a.metrics.RecordHandshake(http.StatusSwitchingProtocols)

	id := uuid.New().String()
	logger := a.logger.With(
		zap.String("session_id", id),
		zap.String("project_id", project.ID),
	)

	bridge, err := a.opts.Launch(pty.LaunchOptions{
		Dir:  project.Path,
		Size: a.opts.InitialSize,
	})
	if err != nil {
		logger.Error("failed to start shell", zap.String("dir", project.Path), zap.Error(err))
		a.metrics.RecordSpawnFailure()
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to start shell")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			logger.Debug("failed to send close frame", zap.Error(err))
		}
		conn.Close()
		return
	}

	rec, err := a.opts.Recorders.Open(id, project, bridge.Size())
	if err != nil {
		logger.Warn("session recording disabled", zap.Error(err))
		rec, _ = recorder.Nop{}.Open(id, project, bridge.Size())
	}

	s := newSession(sessionParams{
		id:         id,
		project:    project,
		remoteAddr: c.ClientIP(),
		conn:       conn,
		bridge:     bridge,
		recorder:   rec,
		chunkSize:  a.opts.ReadChunkSize,
		maxMessage: a.opts.MaxMessageSize,
		queue:      a.opts.OutboundQueue,
		registry:   a.registry,
		metrics:    a.metrics,
		logger:     logger,
	})
	s.Run(a.ctx)
}
