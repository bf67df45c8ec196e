package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

// Metrics records request counts, latencies and error kinds. Paths are the
// route templates so ids do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		m.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.RequestTotal.WithLabelValues(method, path, status).Inc()

		if last := c.Errors.Last(); last != nil {
			kind := apperrors.ErrInternal.String()
			if appErr, ok := apperrors.As(last.Err); ok {
				kind = appErr.Kind()
			}
			m.ErrorTotal.WithLabelValues(method, path, kind).Inc()
		}
	}
}
