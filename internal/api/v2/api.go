// internal/api/v2/api.go
package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/errors"
	"github.com/tphakala/linewalk/internal/export"
	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/notification"
	"github.com/tphakala/linewalk/internal/observability"
	"github.com/tphakala/linewalk/internal/session"
)

// RecordReader is the read side of the record store the API needs
type RecordReader interface {
	List(ctx context.Context) ([]datastore.Record, error)
	Get(ctx context.Context, id string) (*datastore.Record, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Session  *session.Session
	Records  RecordReader
	Exporter *export.Exporter
	Toasts   *notification.Service

	metrics   *observability.Metrics
	logger    logger.Logger
	version   string
	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithExporter sets the exporter used by record downloads.
func WithExporter(e *export.Exporter) Option {
	return func(c *Controller) { c.Exporter = e }
}

// WithNotifications sets the toast service listed by /notifications.
func WithNotifications(s *notification.Service) Option {
	return func(c *Controller) { c.Toasts = s }
}

// WithMetrics exposes the registry under /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithLogger(l logger.Logger) Option { return func(c *Controller) { c.logger = l } }
func WithVersion(v string) Option       { return func(c *Controller) { c.version = v } }

// New creates the API controller and registers its routes under /api/v2
func New(e *echo.Echo, sess *session.Session, records RecordReader, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Session:   sess,
		Records:   records,
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Global().Module("api")
	}
	if c.Exporter == nil {
		c.Exporter = export.New(export.WithLogger(c.logger.Module("export")))
	}

	c.Group = e.Group("/api/v2")
	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initCatalogRoutes()
	c.initFormRoutes()
	c.initPickerRoutes()
	c.initConfirmationRoutes()
	c.initRecordRoutes()
	c.initNotificationRoutes()

	if c.metrics != nil {
		c.Group.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	response := map[string]any{
		"status":         "healthy",
		"version":        c.version,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	dbStatus := "connected"
	if _, err := c.Records.List(ctx.Request().Context()); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["datastore_error"] = err.Error()
	}
	response["datastore_status"] = dbStatus

	return ctx.JSON(http.StatusOK, response)
}

// Error response structure
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API error", fields...)
	}

	return ctx.JSON(code, errorResp)
}

// handleDomainError maps an error category to its HTTP status
func (c *Controller) handleDomainError(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, StatusFor(err))
}

// StatusFor returns the HTTP status code for an error
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// bindError wraps a malformed request body
func (c *Controller) bindError(ctx echo.Context, err error) error {
	return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
}

// dispatch runs one session command with the request context
func (c *Controller) dispatch(ctx echo.Context, cmd session.Command) (session.Result, error) {
	return c.Session.Dispatch(ctx.Request().Context(), cmd)
}
