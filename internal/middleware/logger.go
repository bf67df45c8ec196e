package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged; they carry
// credentials and clinical data.
func Logger(base *logger.Logger) gin.HandlerFunc {
	if base == nil {
		base = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		l := logger.FromContext(c.Request.Context(), base).Zerolog()
		evt := l.Info()
		msg := "Request processed"
		switch {
		case statusCode >= 500:
			evt, msg = l.Error(), "Server error"
		case statusCode >= 400:
			evt, msg = l.Warn(), "Client error"
		}

		evt = evt.
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent())

		if last := c.Errors.Last(); last != nil {
			evt = evt.Err(last.Err)
			if appErr, ok := apperrors.As(last.Err); ok {
				evt = evt.Str("kind", appErr.Kind())
			}
		}
		evt.Msg(msg)
	}
}
