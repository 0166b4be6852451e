package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/api/handlers"
	"github.com/remote-agent-terminal/shellbridge/api/middleware"
	"github.com/remote-agent-terminal/shellbridge/internal/config"
	"github.com/remote-agent-terminal/shellbridge/internal/db"
	"github.com/remote-agent-terminal/shellbridge/internal/logging"
	"github.com/remote-agent-terminal/shellbridge/internal/monitoring"
	"github.com/remote-agent-terminal/shellbridge/internal/pty"
	"github.com/remote-agent-terminal/shellbridge/internal/recorder"
	"github.com/remote-agent-terminal/shellbridge/internal/repository"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
	"github.com/remote-agent-terminal/shellbridge/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := newServer(cfg, logger, serverDeps{
		projects: repository.NewProjectRepository(database),
		registry: session.NewRegistry(),
		metrics:  monitoring.NewMetrics(prometheus.DefaultRegisterer),
		gatherer: prometheus.DefaultGatherer,
	})
	return srv.run(ctx)
}

type serverDeps struct {
	projects *repository.ProjectRepository
	registry *session.Registry
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
}

type server struct {
	http     *http.Server
	registry *session.Registry
	logger   *zap.Logger

	// cancelSessions tears down every live terminal session.
	cancelSessions context.CancelFunc
}

func newServer(cfg *config.Config, logger *zap.Logger, deps serverDeps) *server {
	var (
		recorders  recorder.Factory = recorder.Nop{}
		recordings handlers.RecordingLocator
	)
	if cfg.Terminal.RecordDir != "" {
		f := &recorder.AsciinemaFactory{Dir: cfg.Terminal.RecordDir, Logger: logger.Named("recorder")}
		recorders, recordings = f, f
		logger.Info("recording sessions", zap.String("dir", cfg.Terminal.RecordDir))
	}

	sessionCtx, cancelSessions := context.WithCancel(context.Background())
	acceptor := ws.NewAcceptor(sessionCtx, deps.projects, deps.registry, deps.metrics, logger, ws.Options{
		ReadChunkSize:  cfg.Terminal.ReadChunkSize,
		OutboundQueue:  cfg.Terminal.OutboundQueue,
		MaxMessageSize: cfg.Terminal.MaxMessageSize,
		InitialSize:    pty.Size{Rows: cfg.Terminal.InitialRows, Cols: cfg.Terminal.InitialCols},
		Recorders:      recorders,
	})

	gin.SetMode(gin.ReleaseMode)
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(logging.GinLogger(logger.Named("http")))
	r.Use(gin.Recovery())

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	r.Use(middleware.CORS(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": deps.registry.Count(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{})))

	var upgradeMiddleware []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		upgradeMiddleware = append(upgradeMiddleware, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	api := r.Group("/api")
	{
		handlers.NewProjectHandler(deps.projects, deps.registry, logger.Named("api")).RegisterRoutes(api)
		handlers.NewSessionHandler(deps.registry, recordings).RegisterRoutes(api)
		handlers.NewTerminalHandler(acceptor).RegisterRoutes(r, api, upgradeMiddleware...)
	}

	return &server{
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry:       deps.registry,
		logger:         logger,
		cancelSessions: cancelSessions,
	}
}

// run serves until ctx is cancelled, then ends every session and shuts the
// listener down.
func (s *server) run(ctx context.Context) error {
	defer s.cancelSessions()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", zap.Int("sessions", s.registry.Count()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked connections are invisible to Shutdown, so sessions are ended
	// separately.
	s.cancelSessions()
	s.waitForSessions(shutdownCtx)

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *server) waitForSessions(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for s.registry.Count() > 0 {
		select {
		case <-ctx.Done():
			s.logger.Warn("sessions still open at shutdown", zap.Int("sessions", s.registry.Count()))
			return
		case <-ticker.C:
		}
	}
}
