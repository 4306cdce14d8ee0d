// Package api serves the ops endpoints of hivewatch: a health check and
// Prometheus metrics. It carries no data API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HealthCheck reports whether a dependency answers.
type HealthCheck func(ctx context.Context) error

// Server is the ops HTTP server.
type Server struct {
	echo   *echo.Echo
	listen string
	checks map[string]HealthCheck
	log    logger.Logger
}

// NewServer creates a Server listening on listen. gatherer backs /metrics.
func NewServer(listen string, gatherer prometheus.Gatherer, checks map[string]HealthCheck, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, listen: listen, checks: checks, log: log.Module("api")}
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn("health check failed", logger.String("check", name), logger.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ops server listening", logger.String("listen", s.listen))
		errCh <- s.echo.Start(s.listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
