package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts, durations and in-flight requests.  Paths
// are labelled by route template so label cardinality stays bounded.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	if m == nil {
		m = prometheus.NewNoopAppMetrics()
	}
	return func(c *gin.Context) {
		method := c.Request.Method
		active := m.HTTPActiveRequests.WithLabelValues(method)
		active.Inc()
		start := time.Now()

		c.Next()

		active.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, method, path, c.Writer.Status(), time.Since(start))
	}
}
