// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ServerOptions struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// Server is the HTTP transport of the verifier.
type Server struct {
	echo   *echo.Echo
	opts   ServerOptions
	logger logger.Logger
}

// NewServer wires routes, middleware and the JSON error handler. tracer may be
// nil.
func NewServer(opts ServerOptions, h *Handlers, log logger.Logger, tracer trace.Tracer) *Server {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("api")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	errHandler := apperrors.NewErrorHandler(log, func(code apperrors.ErrorCode, _ int) {
		metrics.RequestErrors.WithLabelValues(string(code)).Inc()
	})
	e.HTTPErrorHandler = errHandler.HandleHTTPError

	e.Use(middleware.Recover())
	e.Use(requestLogger(log, tracer))
	e.Use(middleware.BodyLimit(strconv.FormatInt(opts.MaxUploadBytes, 10)))

	e.POST("/preview", h.Preview)
	e.POST("/verify", h.Verify)
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, opts: opts, logger: log}
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving on the configured address until Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.opts.Address,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	s.logger.Info("http server listening", map[string]interface{}{"address": s.opts.Address})
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
