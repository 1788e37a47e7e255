package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/linewalk/internal/api/middleware"
	v2 "github.com/tphakala/linewalk/internal/api/v2"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/export"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/observability"
	"github.com/tphakala/linewalk/internal/observability/metrics"
	"github.com/tphakala/linewalk/internal/session"
)

// Server is the HTTP server for the line walk API.
// It owns the Echo instance, its middleware and the v2 controller.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	session  *session.Session
	records  v2.RecordReader
	exporter *export.Exporter
	toasts   *notification.Service
	metrics  *observability.Metrics
	version  string

	apiController *v2.Controller
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithExporter sets the exporter used by record downloads.
func WithExporter(e *export.Exporter) ServerOption {
	return func(s *Server) { s.exporter = e }
}

// WithNotifications sets the toast service.
func WithNotifications(n *notification.Service) ServerOption {
	return func(s *Server) { s.toasts = n }
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithVersion sets the version reported by the health endpoints.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, sess *session.Session, records v2.RecordReader, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:  config,
		session: sess,
		records: records,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestLogger(s.log, s.httpMetrics()))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.HTTP
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	opts := []v2.Option{
		v2.WithLogger(s.log),
		v2.WithVersion(s.version),
	}
	if s.exporter != nil {
		opts = append(opts, v2.WithExporter(s.exporter))
	}
	if s.toasts != nil {
		opts = append(opts, v2.WithNotifications(s.toasts))
	}
	if s.metrics != nil {
		opts = append(opts, v2.WithMetrics(s.metrics))
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.apiController = v2.New(s.echo, s.session, s.records, opts...)
	s.echo.GET("/health", s.apiController.HealthCheck)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server and waits for background exports.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	// publishing runs under its own timeout
	if s.apiController != nil {
		s.apiController.Exporter.Wait()
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}
