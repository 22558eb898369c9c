package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry analysis details.
const (
	CorrelationIDKey = "correlationId"
	MethodUsedKey    = "methodUsed"
	BatchSizeKey     = "batchSize"
)

// Logging emits one structured log line per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		if v := c.GetString(CorrelationIDKey); v != "" {
			fields["correlation_id"] = v
		}
		if v := c.GetString(MethodUsedKey); v != "" {
			fields["method_used"] = v
		}
		if v, ok := c.Get(BatchSizeKey); ok {
			fields["batch_size"] = v
		}
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}
		telemetry.Info("request.complete", fields)
	}
}
