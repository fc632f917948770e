package middleware

import (
	"strconv"
	"time"

	"altotrafico-web/internal/logger"
	"altotrafico-web/internal/storage"
	"altotrafico-web/utils"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware limits requests per client IP + route with a fixed
// window counter in the KV store.
func RateLimitMiddleware(kv storage.KV, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip rate limiting for health checks
		if c.FullPath() == "/health" {
			c.Next()
			return
		}

		key := "ratelimit:" + utils.GetClientIP(c.Request) + ":" + c.FullPath()

		count, err := kv.Incr(c.Request.Context(), key, window)
		if err != nil {
			// Fail open - don't block requests if Redis is down
			logger.Warn("rate limit counter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			utils.RespondWithTooManyRequests(c, "Demasiadas solicitudes. Inténtalo más tarde.", int(window.Seconds()), limit)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
