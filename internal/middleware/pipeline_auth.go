package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PipelineAuthMiddleware guards the cron-facing sync routes with a shared key.
// The key is read from X-API-Key, or from an "Authorization: Bearer" header for
// schedulers that can only send bearer tokens. Callers are marked with the
// "pipeline" actor in the request context.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED", "Pipeline endpoints are not configured")
			return
		}
		if subtle.ConstantTimeCompare([]byte(pipelineKey(c)), []byte(apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid or missing API key")
			return
		}
		c.Set("actor", "pipeline")
		c.Next()
	}
}

func pipelineKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
