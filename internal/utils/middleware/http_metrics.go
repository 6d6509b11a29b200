package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	InFlight() prometheus.Gauge
}

// Metrics returns a middleware recording request metrics by route template.
// Unmatched routes are grouped under "unmatched" to bound label cardinality.
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inFlight := m.InFlight()
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
