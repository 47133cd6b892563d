package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/GriffinCanCode/termstream/internal/api/http"
	"github.com/GriffinCanCode/termstream/internal/api/middleware"
	"github.com/GriffinCanCode/termstream/internal/api/ws"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/config"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/terminal/broadcast"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"github.com/GriffinCanCode/termstream/internal/terminal/session"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	http        *http.Server
	registry    *session.Registry
	broadcaster *broadcast.Broadcaster
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing termstream server",
		zap.String("addr", addr(cfg)),
		zap.String("shell", cfg.Terminal.Shell),
		zap.Int("queue_size", cfg.Stream.QueueSize),
	)

	metrics := monitoring.NewMetrics()

	broadcaster := broadcast.New(broadcast.Options{
		QueueSize: cfg.Stream.QueueSize,
		Logger:    logger.Component("broadcast"),
	})

	registry := session.NewRegistry(sessionConfig(cfg.Terminal), broadcaster,
		session.WithLogger(logger.Component("session")),
		session.WithRecorder(metrics),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.BodyLimit(middleware.MaxBodySize))
	router.Use(middleware.Gzip(middleware.DefaultGzipConfig()))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.AllowedOrigins
	router.Use(middleware.CORS(cors))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := httpapi.NewHandlers(registry, metrics, logger.Component("api"))
	wsHandler := ws.NewHandler(registry, metrics, ws.Config{
		WriteTimeout:   cfg.Stream.WriteTimeout.Std(),
		PingInterval:   cfg.Stream.PingInterval.Std(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger.Component("ws"))

	handlers.Register(router)
	router.GET("/sessions/:id/stream", wsHandler.HandleStream)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              addr(cfg),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry:    registry,
		broadcaster: broadcaster,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

func addr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
}

func sessionConfig(t config.TerminalConfig) session.Config {
	return session.Config{
		Shell:          t.Shell,
		Args:           t.Args,
		Dir:            t.Dir,
		TermType:       t.TermType,
		ReadBufferSize: t.ReadBufferSize,
		IdleAfter:      t.IdleAfter.Std(),
		GracePeriod:    t.GracePeriod.Std(),
		Escape: escape.Options{
			MaxParams:    t.MaxParams,
			MaxOSCLength: t.MaxOSCLength,
		},
		SpawnFailures: t.SpawnFailures,
		SpawnCooldown: t.SpawnCooldown.Std(),
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry backing the API
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run starts the HTTP server and blocks until Shutdown
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	return s.serve(func() error { return s.http.ListenAndServe() })
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	return s.serve(func() error { return s.http.Serve(ln) })
}

func (s *Server) serve(fn func() error) error {
	if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every session, and flushes logs.
// Hijacked stream connections end when their sessions close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}
	if err := s.registry.Shutdown(ctx); err != nil {
		s.logger.Error("Session shutdown incomplete", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close sessions: %w", err))
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
