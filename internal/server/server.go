// Package server exposes the engine's observer endpoint: health, metrics
// and the live sprint state.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/engine"
)

// StateSource provides the live sprint state. The engine implements it;
// a nil snapshot means no sprint is running.
type StateSource interface {
	Snapshot() *engine.SprintState
}

// Server is the read-only HTTP listener that runs alongside the engine.
type Server struct {
	echo   *echo.Echo
	source StateSource
	logger *zap.Logger
	cfg    config.ServerConfig
}

// New creates the observer server.
func New(cfg config.ServerConfig, source StateSource, logger *zap.Logger) (*Server, error) {
	if source == nil {
		return nil, fmt.Errorf("state source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		source: source,
		logger: logger,
		cfg:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/state", s.handleState)
}

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// StateResponse is the body for GET /state.
type StateResponse struct {
	Running bool                `json:"running"`
	Sprint  *engine.SprintState `json:"sprint,omitempty"`
}

func (s *Server) handleState(c echo.Context) error {
	snap := s.source.Snapshot()
	return c.JSON(http.StatusOK, StateResponse{
		Running: snap != nil,
		Sprint:  snap,
	})
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting observer server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := time.Duration(s.cfg.ShutdownTimeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.logger.Info("shutting down observer server")
	return s.echo.Shutdown(ctx)
}
