package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records request latency per route.
func GinMiddleware(m *RefreshMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveHTTPRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
