package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"empathos.app/relay/common/logger"
)

// Logger logs one line per request. Session ids from the path are attached
// to the request context so downstream logs carry them too.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if id := c.Param("id"); id != "" {
			ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{SessionID: logger.Ptr(id)})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"lang", Lang(c),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
