// Package server exposes the question pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

const maxQuestionLength = 2000

// Answerer is the part of the pipeline the server depends on.
type Answerer interface {
	Process(ctx context.Context, q models.Question) (*models.PipelineResult, error)
	ClearSession(sessionID string)
}

// ReadinessChecker reports whether the passage index is loaded.
type ReadinessChecker interface {
	Ready() bool
}

type Config struct {
	Address         string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	config   Config
	pipeline Answerer
	ready    ReadinessChecker
	echo     *echo.Echo
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type chatResponse struct {
	Answer  string                  `json:"answer"`
	Sources []models.SourceCitation `json:"sources"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func New(config Config, pipeline Answerer, ready ReadinessChecker, logger *zap.Logger) *Server {
	if config.Address == "" {
		config.Address = ":8080"
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 90 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		pipeline: pipeline,
		ready:    ready,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:  true,
		LogURI:     true,
		LogError:   true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Error("request failed", append(fields, zap.Error(v.Error))...)
			} else {
				logger.Info("request completed", fields...)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/ws", s.handleWebSocket)

	api := e.Group("/api/v1")
	api.POST("/chat", s.handleChat)
	api.DELETE("/chat/history/:session_id", s.handleClearHistory)

	s.echo = e
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("address", s.config.Address))
	if err := s.echo.Start(s.config.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func validateQuestion(req chatRequest) error {
	n := utf8.RuneCountInString(strings.TrimSpace(req.Question))
	if n < 1 || n > maxQuestionLength {
		return models.ValidationError{
			Field:   "question",
			Message: fmt.Sprintf("question must be between 1 and %d characters", maxQuestionLength),
		}
	}
	if req.Language != "" {
		if _, ok := models.ParseLanguage(req.Language); !ok {
			return models.ValidationError{Field: "language", Message: "language must be pt or en"}
		}
	}
	return nil
}

// mapError converts a pipeline error into the response sent to the client.
// Provider messages never reach the client.
func mapError(err error) *echo.HTTPError {
	switch {
	case types.IsMalformed(err):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	case errors.Is(err, models.ErrValidation):
		var v models.ValidationError
		if errors.As(err, &v) {
			return echo.NewHTTPError(http.StatusBadRequest, v.Error()).SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request").SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if code < http.StatusInternalServerError || code == http.StatusGatewayTimeout {
			detail = fmt.Sprint(he.Message)
		}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, errorResponse{Detail: detail})
	}
	if writeErr != nil {
		s.logger.Warn("failed to write error response", zap.Error(writeErr))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(c echo.Context) error {
	if s.ready == nil || !s.ready.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if err := validateQuestion(req); err != nil {
		return mapError(err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.RequestTimeout)
	defer cancel()

	result, err := s.pipeline.Process(ctx, models.Question{
		Text:      req.Question,
		Language:  req.Language,
		SessionID: req.SessionID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, chatResponse{Answer: result.Answer, Sources: result.Sources})
}

func (s *Server) handleClearHistory(c echo.Context) error {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	s.pipeline.ClearSession(sessionID)
	return c.JSON(http.StatusOK, map[string]string{
		"status":     "cleared",
		"session_id": sessionID,
	})
}
