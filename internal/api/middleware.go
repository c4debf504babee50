// internal/api/middleware.go
package api

import (
	"time"

	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const loggerKey = "logger"

// requestLogger assigns a request id, opens a span, logs the outcome and
// updates the HTTP metrics. Errors are rendered here so the logged status is
// the one the client sees.
func requestLogger(base logger.Logger, tracer trace.Tracer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			ctx, span := tracer.Start(req.Context(), req.Method+" "+route, trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", rid),
			))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			log := base.WithFields(map[string]interface{}{
				"requestId": rid,
				"method":    req.Method,
				"path":      req.URL.Path,
			})
			c.Set(loggerKey, log)

			err := next(c)
			if err != nil {
				span.RecordError(err)
				c.Error(err)
			}

			status := c.Response().Status
			duration := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, metrics.StatusClass(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(duration.Seconds())
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, "server error")
			}

			fields := map[string]interface{}{
				"status":     status,
				"durationMs": duration.Milliseconds(),
				"remoteIp":   c.RealIP(),
			}
			if status >= 500 {
				log.Error("http request failed", fields)
			} else {
				log.Info("http request served", fields)
			}
			return nil
		}
	}
}

// requestLog returns the request-scoped logger set by requestLogger.
func requestLog(c echo.Context, fallback logger.Logger) logger.Logger {
	if l, ok := c.Get(loggerKey).(logger.Logger); ok {
		return l
	}
	return fallback
}
