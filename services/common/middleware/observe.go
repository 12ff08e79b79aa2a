package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	"github.com/yashrajoria/shopflow/services/common/logger"
	"go.uber.org/zap"
)

const metricsTimeout = 5 * time.Second

// served describes a request after the handler chain has finished.
type served struct {
	method  string
	route   string
	status  int
	latency time.Duration
}

func finish(c *gin.Context, start time.Time) served {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	return served{
		method:  c.Request.Method,
		route:   route,
		status:  c.Writer.Status(),
		latency: time.Since(start),
	}
}

func statusCodeToRange(code int) string {
	switch code / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	}
	return "unknown"
}

// RequestLogger writes one line per request. 5xx logs at error, 4xx at warn.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s := finish(c, start)

		fields := []zap.Field{
			zap.String("method", s.method),
			zap.String("route", s.route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", s.status),
			zap.Duration("latency", s.latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if rid := c.GetString(logger.RequestIDKey); rid != "" {
			fields = append(fields, zap.String(logger.RequestIDKey, rid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case s.status >= 500:
			log.Error("http_request", fields...)
		case s.status >= 400:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

// MetricsMiddleware publishes request count and latency per route, plus
// 4xx/5xx counters. A disabled or nil recorder makes it a pass-through.
func MetricsMiddleware(rec awspkg.Recorder, serviceName string) gin.HandlerFunc {
	if rec == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if toggled, ok := rec.(interface{ IsEnabled() bool }); ok && !toggled.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s := finish(c, start)

		dims := map[string]string{
			"Service": serviceName,
			"Method":  s.method,
			"Route":   s.route,
			"Status":  statusCodeToRange(s.status),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsTimeout)
			defer cancel()

			_ = rec.RecordCount(ctx, awspkg.MetricHTTPRequests, dims)
			_ = rec.RecordLatency(ctx, awspkg.MetricHTTPLatency, s.latency, dims)
			if s.status >= 500 {
				_ = rec.RecordCount(ctx, awspkg.MetricHTTP5xx, dims)
			} else if s.status >= 400 {
				_ = rec.RecordCount(ctx, awspkg.MetricHTTP4xx, dims)
			}
		}()
	}
}
