package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchgate/metrics"
	"github.com/use-agent/fetchgate/models"
)

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "X-API-Key"

// Auth returns shared-secret authentication middleware.
//
// If apiKey is empty, the middleware is a no-op (open access). Otherwise a
// missing or empty X-API-Key header is rejected with 401 and a mismatched
// one with 403. The comparison runs in constant time.
func Auth(apiKey string, m *metrics.Metrics) gin.HandlerFunc {
	if apiKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			if m != nil {
				m.IncAuthFailure("missing")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Detail: "Missing API key. Provide it via the X-API-Key header.",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			if m != nil {
				m.IncAuthFailure("invalid")
			}
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Detail: "Invalid API key.",
			})
			return
		}

		c.Set("api_key", key)
		c.Next()
	}
}
