package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetricsMiddleware creates middleware for recording HTTP metrics.
// A nil Metrics yields a pass-through middleware.
func HTTPMetricsMiddleware(m *Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		m.RecordHTTPRequest(c.Request.Method, endpointLabel(c), c.Writer.Status(), time.Since(start))
	}
}

// endpointLabel uses the route template so unmatched paths collapse into a
// single label value.
func endpointLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
